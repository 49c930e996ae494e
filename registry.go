package hxbus

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/a-h/templ"
)

// Kind names a family of page elements.
type Kind string

// Built-in kinds.
const (
	KindPage     Kind = "page"
	KindForm     Kind = "form"
	KindPanel    Kind = "panel"
	KindButton   Kind = "button"
	KindLink     Kind = "link"
	KindInput    Kind = "input"
	KindText     Kind = "text"
	KindObserver Kind = "observer"
)

// RenderFunc writes an element. attrs holds the element's own attributes
// merged with those contributed by its producers; children renders the
// element's children in order.
type RenderFunc func(ctx context.Context, w io.Writer, e *Element, attrs templ.Attributes, children templ.Component) error

// Behavior is what the bus needs to know about a kind.
type Behavior struct {
	// NamingContainer elements prefix the client ids of their descendants.
	NamingContainer bool
	// ClientBehaviors elements can host producers.
	ClientBehaviors bool
	Render          RenderFunc
}

// Registry maps element kinds to behaviors. Kinds are looked up once,
// when a tree is composed.
type Registry struct {
	mu    sync.RWMutex
	kinds map[Kind]Behavior
}

// NewRegistry creates a registry holding the built-in kinds.
func NewRegistry() *Registry {
	reg := &Registry{kinds: make(map[Kind]Behavior)}
	reg.Add(KindPage, Behavior{Render: containerRenderer("div")})
	reg.Add(KindForm, Behavior{NamingContainer: true, Render: containerRenderer("form")})
	reg.Add(KindPanel, Behavior{Render: containerRenderer("div")})
	reg.Add(KindButton, Behavior{ClientBehaviors: true, Render: textRenderer("button", templ.Attributes{"type": "button"})})
	reg.Add(KindLink, Behavior{ClientBehaviors: true, Render: textRenderer("a", templ.Attributes{"href": "#"})})
	reg.Add(KindInput, Behavior{ClientBehaviors: true, Render: renderInput})
	reg.Add(KindText, Behavior{Render: textRenderer("span", nil)})
	reg.Add(KindObserver, Behavior{Render: renderObserver})
	return reg
}

// Add registers a kind. Panics if the kind is already registered; use
// Replace to override a built-in.
func (reg *Registry) Add(kind Kind, b Behavior) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.kinds[kind]; exists {
		panic(fmt.Sprintf("hxbus: kind %q already registered", kind))
	}
	reg.kinds[kind] = b
}

// Replace registers or overrides a kind.
func (reg *Registry) Replace(kind Kind, b Behavior) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.kinds[kind] = b
}

// Lookup returns the behavior of kind.
func (reg *Registry) Lookup(kind Kind) (Behavior, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	b, ok := reg.kinds[kind]
	return b, ok
}

// Kinds returns the registered kinds, sorted.
func (reg *Registry) Kinds() []Kind {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]Kind, 0, len(reg.kinds))
	for k := range reg.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func containerRenderer(tag string) RenderFunc {
	return func(ctx context.Context, w io.Writer, e *Element, attrs templ.Attributes, children templ.Component) error {
		if err := openTag(w, tag, e, attrs); err != nil {
			return err
		}
		if err := children.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</"+tag+">")
		return err
	}
}

func textRenderer(tag string, defaults templ.Attributes) RenderFunc {
	return func(ctx context.Context, w io.Writer, e *Element, attrs templ.Attributes, children templ.Component) error {
		merged := templ.Attributes{}
		for k, v := range defaults {
			merged[k] = v
		}
		for k, v := range attrs {
			merged[k] = v
		}
		if err := openTag(w, tag, e, merged); err != nil {
			return err
		}
		if _, err := io.WriteString(w, templ.EscapeString(e.Text)); err != nil {
			return err
		}
		if err := children.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</"+tag+">")
		return err
	}
}

func renderInput(ctx context.Context, w io.Writer, e *Element, attrs templ.Attributes, _ templ.Component) error {
	merged := templ.Attributes{"name": e.ClientID(), "value": e.Text}
	for k, v := range attrs {
		merged[k] = v
	}
	return openTag(w, "input", e, merged)
}

func renderObserver(ctx context.Context, w io.Writer, e *Element, attrs templ.Attributes, _ templ.Component) error {
	if e.Observer == nil {
		return invalidDeclaration("element %q of kind %q has no observer", e.ClientID(), e.Kind)
	}
	return e.Observer.encode(w, attrs)
}

// openTag writes <tag id="..." attrs...> for an element.
func openTag(w io.Writer, tag string, e *Element, attrs templ.Attributes) error {
	return writeOpenTag(w, tag, e.ClientID(), attrs)
}

// writeOpenTag writes <tag id="..." attrs...> with attributes in key order.
func writeOpenTag(w io.Writer, tag, id string, attrs templ.Attributes) error {
	if _, err := io.WriteString(w, "<"+tag+` id="`+templ.EscapeString(id)+`"`); err != nil {
		return err
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if k != "id" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		var s string
		switch v := attrs[k].(type) {
		case bool:
			if !v {
				continue
			}
			s = " " + templ.EscapeString(k)
		case string:
			s = " " + templ.EscapeString(k) + `="` + templ.EscapeString(v) + `"`
		default:
			s = " " + templ.EscapeString(k) + `="` + templ.EscapeString(fmt.Sprint(v)) + `"`
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, ">")
	return err
}
