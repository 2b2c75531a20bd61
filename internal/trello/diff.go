package trello

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Diff is the "old" object of an update action: field name to previous
// value, in the order the API sent them.
//
// The zero value is an empty diff ready to use.
type Diff struct {
	keys   []string
	values map[string]any
}

// NewDiff builds a diff from alternating key/value pairs.
func NewDiff(pairs ...any) *Diff {
	if len(pairs)%2 != 0 {
		panic("trello.NewDiff: odd number of arguments")
	}
	d := &Diff{}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("trello.NewDiff: key %v is not a string", pairs[i]))
		}
		d.Set(key, pairs[i+1])
	}
	return d
}

// Keys returns the field names in upstream order.
func (d *Diff) Keys() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Len reports the number of fields.
func (d *Diff) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Get returns the previous value of key.
func (d *Diff) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Set adds or replaces key, keeping the original position of an existing key.
func (d *Diff) Set(key string, value any) {
	if d.values == nil {
		d.values = make(map[string]any)
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Delete removes key. It reports whether the key was present.
func (d *Diff) Delete(key string) bool {
	if d == nil {
		return false
	}
	if _, ok := d.values[key]; !ok {
		return false
	}
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

// Clone returns an independent copy.
func (d *Diff) Clone() *Diff {
	if d == nil {
		return nil
	}
	c := &Diff{
		keys:   make([]string, len(d.keys)),
		values: make(map[string]any, len(d.values)),
	}
	copy(c.keys, d.keys)
	for k, v := range d.values {
		c.values[k] = v
	}
	return c
}

// UnmarshalJSON decodes an object while recording key order.
func (d *Diff) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode diff: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode diff: expected object, got %v", tok)
	}

	*d = Diff{values: make(map[string]any)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode diff: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("decode diff: unexpected key %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode diff field %q: %w", key, err)
		}
		d.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode diff: %w", err)
	}
	return nil
}

// MarshalJSON encodes the diff with keys in upstream order.
func (d Diff) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(d.values[k])
		if err != nil {
			return nil, fmt.Errorf("encode diff field %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
