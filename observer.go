package hxbus

import (
	"context"
	"iter"
)

// DefaultGroup is the group of observers and producers that do not name one.
const DefaultGroup = "global"

// Observer subscribes an element to named events of a group.
//
// An observer carries two kinds of state with different lifecycles:
//   - durable configuration (group, immediate flag) that survives round
//     trips through the view state;
//   - the registration table, rebuilt from its OnEvent declarations on
//     every render pass and never persisted.
//
// Example:
//
//	obs := hxbus.NewObserver("orders").On(hxbus.OnEvent{
//	    Event:  "saved",
//	    Render: hxbus.Ref("summary"),
//	})
type Observer struct {
	durable   observerState
	decls     []OnEvent
	table     registrationTable
	listeners []ActionListener
	node      Node
}

type observerState struct {
	Group     string
	Immediate bool
}

// registrationTable is the per-render-pass list of descriptors.
type registrationTable struct {
	entries []EventDescriptor
}

func (t *registrationTable) reset() {
	t.entries = nil
}

// NewObserver creates an observer in the given group ("" means DefaultGroup).
func NewObserver(group string) *Observer {
	return &Observer{durable: observerState{Group: group}}
}

// On adds subscription declarations. They are evaluated on each render pass.
func (o *Observer) On(decls ...OnEvent) *Observer {
	o.decls = append(o.decls, decls...)
	return o
}

// Immediate marks the observer's action events for delivery in the
// apply-request-values phase instead of invoke-application.
func (o *Observer) Immediate(immediate bool) *Observer {
	o.durable.Immediate = immediate
	return o
}

// IsImmediate returns the immediate flag.
func (o *Observer) IsImmediate() bool {
	return o.durable.Immediate
}

// Group returns the observer's group.
func (o *Observer) Group() string {
	if o.durable.Group == "" {
		return DefaultGroup
	}
	return o.durable.Group
}

// SetGroup changes the group. The change is durable.
func (o *Observer) SetGroup(group string) {
	o.durable.Group = group
}

// Declarations returns the subscription declarations.
func (o *Observer) Declarations() []OnEvent {
	return o.decls
}

// Bind attaches the observer to its node in the page tree. Compose binds
// observers of *Element trees automatically.
func (o *Observer) Bind(n Node) *Observer {
	o.node = n
	return o
}

// Node returns the node the observer is bound to.
func (o *Observer) Node() Node {
	return o.node
}

// ClientID returns the observer's absolute address, or "" when unbound.
func (o *Observer) ClientID() string {
	if o.node == nil {
		return ""
	}
	return o.node.ClientID()
}

// OnAction registers a listener for the observer's action events.
func (o *Observer) OnAction(l ActionListener) *Observer {
	o.listeners = append(o.listeners, l)
	return o
}

// AddRegistration appends a descriptor to the registration table.
// Duplicates are kept.
func (o *Observer) AddRegistration(d EventDescriptor) {
	o.table.entries = append(o.table.entries, d)
}

// Registrations yields the registered descriptors in insertion order.
// The sequence can be ranged over any number of times.
func (o *Observer) Registrations() iter.Seq[EventDescriptor] {
	return func(yield func(EventDescriptor) bool) {
		for i := 0; i < len(o.table.entries); i++ {
			if !yield(o.table.entries[i]) {
				return
			}
		}
	}
}

// BeginPass clears the registration table. Every render pass starts
// with it, so nothing registered by a previous pass leaks into the next.
func (o *Observer) BeginPass() {
	o.table.reset()
}

// Apply evaluates the observer's declarations and registers the
// resulting descriptors. It only runs during the render-response phase;
// in any other phase it does nothing.
func (o *Observer) Apply(ctx context.Context, eval Evaluator) error {
	if CurrentPhase(ctx) != PhaseRenderResponse {
		return nil
	}
	for _, decl := range o.decls {
		d, err := BuildDescriptor(ctx, eval, decl)
		if err != nil {
			return err
		}
		o.AddRegistration(d)
	}
	return nil
}

// HXEncode returns the durable state. Registrations are not included.
func (o *Observer) HXEncode() map[string]any {
	return map[string]any{
		"g": o.durable.Group,
		"i": o.durable.Immediate,
	}
}

// HXDecode restores the durable state.
func (o *Observer) HXDecode(m map[string]any) error {
	if v, ok := m["g"].(string); ok {
		o.durable.Group = v
	}
	if v, ok := m["i"].(bool); ok {
		o.durable.Immediate = v
	}
	return nil
}

// Ref returns a pointer to s, for optional OnEvent attributes.
func Ref(s string) *string {
	return &s
}
