// Package render turns board actions into chat messages.
//
// A Registry maps action types to Renderers. It is assembled once with a
// Builder and is read-only afterwards:
//
//	reg := render.NewBuilder().
//		Register("createCard", myRenderer).
//		Build(render.WithAliases(aliases))
//
// Default returns a Registry holding the full catalogue.
package render

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/boardhook/internal/trello"
)

// Renderer produces the message for one action. Returning Skip with a nil
// error suppresses the message.
type Renderer func(a trello.Action) (string, error)

// Skip is the result of a Renderer that has nothing to say.
const Skip = ""

// Builder collects renderers before a Registry is frozen.
type Builder struct {
	renderers map[string]Renderer
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{renderers: make(map[string]Renderer)}
}

// Register associates typ with r. Registering the same type twice, an empty
// type, or a nil renderer panics.
func (b *Builder) Register(typ string, r Renderer) *Builder {
	if typ == "" {
		panic("render: Register with empty type")
	}
	if r == nil {
		panic(fmt.Sprintf("render: Register(%q) with nil renderer", typ))
	}
	if _, dup := b.renderers[typ]; dup {
		panic(fmt.Sprintf("render: duplicate renderer for %q", typ))
	}
	b.renderers[typ] = r
	return b
}

// Build freezes the registered renderers into a Registry. The Builder may be
// reused; later registrations do not affect registries already built.
func (b *Builder) Build(opts ...Option) *Registry {
	s := newSettings(opts)
	r := &Registry{
		renderers: make(map[string]Renderer, len(b.renderers)),
		aliases:   s.aliases,
		logger:    s.logger,
	}
	for typ, fn := range b.renderers {
		r.renderers[typ] = fn
	}
	return r
}

// Option configures a Registry.
type Option func(*settings)

type settings struct {
	aliases map[string]string
	logger  *slog.Logger
}

func newSettings(opts []Option) settings {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithAliases maps source usernames to the names shown in messages.
// Usernames are compared after NFC normalization.
func WithAliases(aliases map[string]string) Option {
	return func(s *settings) {
		s.aliases = make(map[string]string, len(aliases))
		for from, to := range aliases {
			s.aliases[norm.NFC.String(from)] = to
		}
	}
}

// WithLogger sets the logger used for lossy-render warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Registry is an immutable mapping from action type to Renderer. It is safe
// for concurrent use.
type Registry struct {
	renderers map[string]Renderer
	aliases   map[string]string
	logger    *slog.Logger
}

// Types returns the registered action types, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.renderers))
	for typ := range r.renderers {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// Render produces the message for a. ok is false when the renderer chose to
// skip the action. A missing field yields an error matching
// ErrMalformedAction.
//
// Render panics if a.Type has no renderer: the source is only ever asked for
// registered types.
func (r *Registry) Render(a trello.Action) (msg string, ok bool, err error) {
	fn, found := r.renderers[a.Type]
	if !found {
		panic(fmt.Sprintf("render: no renderer registered for %q", a.Type))
	}

	msg, err = fn(r.applyAliases(a))
	if err != nil {
		var me *MalformedError
		if errors.As(err, &me) {
			if me.Type == "" {
				me.Type = a.Type
			}
			if me.ActionID == "" {
				me.ActionID = a.ID
			}
			return "", false, me
		}
		return "", false, &MalformedError{Type: a.Type, ActionID: a.ID, Field: "payload", Err: err}
	}
	if msg == Skip {
		return "", false, nil
	}
	return norm.NFC.String(msg), true, nil
}

// Alias returns the display name for username.
func (r *Registry) Alias(username string) string {
	if alias, ok := r.aliases[norm.NFC.String(username)]; ok {
		return alias
	}
	return username
}

// applyAliases returns a copy of a with every username replaced by its alias.
func (r *Registry) applyAliases(a trello.Action) trello.Action {
	if len(r.aliases) == 0 {
		return a
	}
	c := a.Clone()
	if c.Member != nil {
		c.Member.Username = r.Alias(c.Member.Username)
	}
	if c.MemberCreator != nil {
		c.MemberCreator.Username = r.Alias(c.MemberCreator.Username)
	}
	for name, e := range c.Display.Entities {
		if e.Username == "" {
			continue
		}
		e.Username = r.Alias(e.Username)
		c.Display.Entities[name] = e
	}
	return c
}
