// Package filter removes noise from a page of board actions before it is
// rendered: muted types, muted fields, muted destination lists, updates left
// empty by muting, and updates that only echo a membership change.
//
// The pipeline is a pure function of its Config and the input page. It never
// mutates the caller's actions; survivors are deep copies.
package filter

import (
	"sort"
	"strings"
)

// Config is the immutable set of exclusions applied to a run.
//
// The zero value mutes nothing.
type Config struct {
	types  map[string]struct{}
	fields map[string]struct{}
	lists  map[string]struct{}
}

// NewConfig builds a Config from muted action types, update fields and
// destination list names. Entries are trimmed and blanks are ignored, so a
// split of an empty comma-separated setting is harmless.
func NewConfig(types, fields, lists []string) Config {
	return Config{
		types:  toSet(types),
		fields: toSet(fields),
		lists:  toSet(lists),
	}
}

// TypeMuted reports whether actions of type t are excluded.
func (c Config) TypeMuted(t string) bool {
	_, ok := c.types[t]
	return ok
}

// FieldMuted reports whether changes to field are hidden from update diffs.
func (c Config) FieldMuted(field string) bool {
	_, ok := c.fields[field]
	return ok
}

// ListMuted reports whether moves into the named list are excluded.
func (c Config) ListMuted(name string) bool {
	_, ok := c.lists[name]
	return ok
}

// MutedTypes returns the muted action types, sorted.
func (c Config) MutedTypes() []string { return sorted(c.types) }

// MutedFields returns the muted update fields, sorted.
func (c Config) MutedFields() []string { return sorted(c.fields) }

// MutedLists returns the muted list names, sorted.
func (c Config) MutedLists() []string { return sorted(c.lists) }

// RequestedTypes returns the registered types that are not muted, sorted.
// The result is empty (not nil) when everything is muted.
func (c Config) RequestedTypes(registered []string) []string {
	out := make([]string, 0, len(registered))
	seen := make(map[string]struct{}, len(registered))
	for _, t := range registered {
		if c.TypeMuted(t) {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	return set
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
