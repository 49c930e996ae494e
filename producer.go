package hxbus

import (
	"strings"

	"github.com/a-h/templ"
)

// RuntimeNamespace is the global object of the client runtime.
const RuntimeNamespace = "hxbus"

// Producer broadcasts Event in Group when the client condition On fires
// on its trigger element (e.g. "click").
//
// A producer is declared once and persists with its trigger element. It
// only emits a declarative call; routing to observers is done entirely by
// the client runtime.
type Producer struct {
	Group string
	Event string
	On    string
}

// NewProducer creates a producer in DefaultGroup.
func NewProducer(on, event string) Producer {
	return Producer{On: on, Event: event}
}

// InGroup returns a copy of p in the given group.
func (p Producer) InGroup(group string) Producer {
	p.Group = group
	return p
}

// GroupName returns the producer's group, defaulting to DefaultGroup.
func (p Producer) GroupName() string {
	if p.Group == "" {
		return DefaultGroup
	}
	return p.Group
}

// Validate checks required attributes.
func (p Producer) Validate() error {
	if strings.TrimSpace(p.On) == "" {
		return invalidDeclaration("producer: on is required")
	}
	if strings.TrimSpace(p.Event) == "" {
		return invalidDeclaration("producer: event is required")
	}
	return nil
}

// DispatchScript returns the client call the trigger runs:
//
//	hxbus.dispatch('orders','saved')
//
// Event may hold several space-separated names; the runtime dispatches
// each of them.
func (p Producer) DispatchScript() string {
	var sb strings.Builder
	sb.WriteString(RuntimeNamespace)
	sb.WriteString(".dispatch(")
	writeQuoted(&sb, p.GroupName())
	sb.WriteByte(',')
	writeQuoted(&sb, p.Event)
	sb.WriteByte(')')
	return sb.String()
}

// Attrs binds the dispatch script to the trigger condition through an
// hx-on attribute:
//
//	<button { p.Attrs()... }>Save</button>
func (p Producer) Attrs() templ.Attributes {
	return templ.Attributes{"hx-on:" + p.On: p.DispatchScript()}
}

// ProducerAttrs merges the attributes of several producers. Producers
// sharing a trigger condition run in declaration order.
func ProducerAttrs(ps ...Producer) templ.Attributes {
	attrs := templ.Attributes{}
	for _, p := range ps {
		key := "hx-on:" + p.On
		script := p.DispatchScript()
		if prev, ok := attrs[key].(string); ok {
			script = prev + ";" + script
		}
		attrs[key] = script
	}
	return attrs
}

// HXEncode returns the durable state of the producer.
func (p Producer) HXEncode() map[string]any {
	return map[string]any{"g": p.Group, "e": p.Event, "o": p.On}
}

// HXDecode restores the durable state of the producer.
func (p *Producer) HXDecode(m map[string]any) error {
	if v, ok := m["g"].(string); ok {
		p.Group = v
	}
	if v, ok := m["e"].(string); ok {
		p.Event = v
	}
	if v, ok := m["o"].(string); ok {
		p.On = v
	}
	return nil
}
