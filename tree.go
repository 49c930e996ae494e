package hxbus

import (
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

// Separator joins naming-container ids into absolute client ids.
const Separator = ":"

// Element is the default page tree node.
//
// An element becomes usable as a resolution root once its tree has been
// composed (see Compose or NewPage): composition links parents, assigns
// generated ids to anonymous elements, and resolves each element's Kind
// into a Behavior through the Registry.
type Element struct {
	ID       string
	Kind     Kind
	Text     string
	Attrs    templ.Attributes
	Children []*Element

	// Observer is set on elements of an observer kind.
	Observer *Observer
	// Producers attached to this element. Ignored unless the kind hosts
	// client behaviors.
	Producers []Producer

	parent   *Element
	behavior Behavior
	composed bool
}

// NewElement creates an element with the given kind and id.
func NewElement(kind Kind, id string, children ...*Element) *Element {
	return &Element{ID: id, Kind: kind, Children: children}
}

// Append adds children and returns e for chaining.
func (e *Element) Append(children ...*Element) *Element {
	e.Children = append(e.Children, children...)
	return e
}

// Parent returns the enclosing element, or nil for the tree root.
func (e *Element) Parent() *Element {
	return e.parent
}

// Behavior returns the behavior resolved for this element's kind.
func (e *Element) Behavior() Behavior {
	return e.behavior
}

// ClientID returns the absolute address of the element: the ids of every
// naming-container ancestor followed by its own id, joined by Separator.
func (e *Element) ClientID() string {
	var parts []string
	for p := e.parent; p != nil; p = p.parent {
		if p.behavior.NamingContainer {
			parts = append(parts, p.ID)
		}
	}
	if len(parts) == 0 {
		return e.ID
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteString(parts[i])
		sb.WriteString(Separator)
	}
	sb.WriteString(e.ID)
	return sb.String()
}

// Find looks up ref relative to e.
//
// A ref starting with Separator is searched from the tree root. Otherwise
// the search starts at the closest naming container enclosing e (e itself
// if it is one) or the tree root. The first segment is matched against the
// base and its descendants without entering nested naming containers; each
// following segment must name an element inside the previous one, which
// must itself be a naming container.
func (e *Element) Find(ref string) (Node, bool) {
	found := e.find(ref)
	if found == nil {
		return nil, false
	}
	return found, true
}

func (e *Element) find(ref string) *Element {
	if ref == "" {
		return nil
	}

	var base *Element
	if strings.HasPrefix(ref, Separator) {
		base = e.root()
		ref = ref[len(Separator):]
	} else {
		base = e.namingBase()
	}

	segments := strings.Split(ref, Separator)
	cur := base
	for i, seg := range segments {
		if seg == "" {
			return nil
		}
		next := cur.findWithin(seg)
		if next == nil {
			return nil
		}
		if i < len(segments)-1 && !next.behavior.NamingContainer {
			return nil
		}
		cur = next
	}
	return cur
}

func (e *Element) root() *Element {
	r := e
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (e *Element) namingBase() *Element {
	for n := e; n != nil; n = n.parent {
		if n.behavior.NamingContainer {
			return n
		}
	}
	return e.root()
}

// findWithin matches e itself, then searches its subtree without crossing
// into nested naming containers.
func (e *Element) findWithin(id string) *Element {
	if e.ID == id {
		return e
	}
	for _, c := range e.Children {
		if found := c.findInScope(id); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) findInScope(id string) *Element {
	if e.ID == id {
		return e
	}
	if e.behavior.NamingContainer {
		return nil
	}
	for _, c := range e.Children {
		if found := c.findInScope(id); found != nil {
			return found
		}
	}
	return nil
}

// Candidates lists the ids and client ids of every element in the tree.
func (e *Element) Candidates() []string {
	var out []string
	e.root().Walk(func(n *Element) bool {
		out = append(out, n.ID)
		if cid := n.ClientID(); cid != n.ID {
			out = append(out, cid)
		}
		return true
	})
	return out
}

// Walk visits e and its descendants depth-first, in document order.
// Returning false from fn skips the children of the visited element.
func (e *Element) Walk(fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		c.Walk(fn)
	}
}

// Lookup finds an element by absolute client id.
func (e *Element) Lookup(clientID string) *Element {
	return e.root().find(Separator + clientID)
}

// Compose links the tree rooted at root and resolves every element's
// kind through reg. Anonymous elements receive generated ids. Composing
// an already composed tree is a no-op.
func Compose(root *Element, reg *Registry) error {
	if root.composed {
		return nil
	}
	seq := 0
	var link func(parent, e *Element) error
	link = func(parent, e *Element) error {
		b, ok := reg.Lookup(e.Kind)
		if !ok {
			return invalidDeclaration("unknown element kind %q", e.Kind)
		}
		e.parent = parent
		e.behavior = b
		e.composed = true
		if e.ID == "" {
			e.ID = fmt.Sprintf("hx_id%d", seq)
			seq++
		}
		if e.Observer != nil {
			e.Observer.node = e
		}
		for _, c := range e.Children {
			if err := link(e, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := link(nil, root); err != nil {
		return err
	}

	seen := make(map[string]bool)
	var dup error
	root.Walk(func(e *Element) bool {
		cid := e.ClientID()
		if seen[cid] && dup == nil {
			dup = invalidDeclaration("duplicate client id %q", cid)
		}
		seen[cid] = true
		return true
	})
	return dup
}
