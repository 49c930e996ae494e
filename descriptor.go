package hxbus

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Default execute and render sets of a descriptor.
const (
	DefaultExecute = TokenThis
	DefaultRender  = TokenNone
)

// EventDescriptor describes one subscription of an observer: when Event
// is dispatched in the observer's group, the client issues a partial
// update executing Execute and re-rendering Render.
//
// Descriptors are rebuilt on every render pass and never persisted.
type EventDescriptor struct {
	Event   string
	Execute []string
	Render  []string
}

// NewEventDescriptor creates a descriptor, substituting the default
// execute and render sets when they are empty.
func NewEventDescriptor(event string, execute, render []string) EventDescriptor {
	if len(execute) == 0 {
		execute = []string{DefaultExecute}
	}
	if len(render) == 0 {
		render = []string{DefaultRender}
	}
	return EventDescriptor{
		Event:   event,
		Execute: slices.Clone(execute),
		Render:  slices.Clone(render),
	}
}

// OnEvent is the raw declaration of a subscription. Execute and Render
// are nil when the attribute was not written.
//
// Values are expressions evaluated at render time, which allows an
// observer to subscribe conditionally. ExecuteList and RenderList hold
// literal token collections; when non-nil they replace Execute and
// Render, and each element is one token.
type OnEvent struct {
	Event   string
	Execute *string
	Render  *string

	ExecuteList []string
	RenderList  []string
}

// Validate checks required attributes.
func (o OnEvent) Validate() error {
	if strings.TrimSpace(o.Event) == "" {
		return invalidDeclaration("on-event: event is required")
	}
	return nil
}

// BuildDescriptor evaluates a declaration into a descriptor.
//
// The event expression must evaluate to a non-empty string. Execute and
// render expressions may evaluate to a whitespace-separated string or to
// a collection of literal tokens; unset, nil, blank and empty values take
// the defaults.
func BuildDescriptor(ctx context.Context, eval Evaluator, on OnEvent) (EventDescriptor, error) {
	if err := on.Validate(); err != nil {
		return EventDescriptor{}, err
	}
	if eval == nil {
		eval = Literal
	}

	v, err := eval.Evaluate(ctx, on.Event)
	if err != nil {
		return EventDescriptor{}, fmt.Errorf("evaluate event %q: %w", on.Event, err)
	}
	event, ok := v.(string)
	if !ok || event == "" {
		return EventDescriptor{}, invalidDeclaration("event %q evaluated to %#v, want a non-empty string", on.Event, v)
	}

	execute, err := declaredTokens(ctx, eval, on.Execute, on.ExecuteList, DefaultExecute)
	if err != nil {
		return EventDescriptor{}, fmt.Errorf("evaluate execute: %w", err)
	}
	render, err := declaredTokens(ctx, eval, on.Render, on.RenderList, DefaultRender)
	if err != nil {
		return EventDescriptor{}, fmt.Errorf("evaluate render: %w", err)
	}

	return EventDescriptor{Event: event, Execute: execute, Render: render}, nil
}

func declaredTokens(ctx context.Context, eval Evaluator, expr *string, list []string, def string) ([]string, error) {
	if list == nil {
		return evaluateTokens(ctx, eval, expr, def)
	}
	if len(list) == 0 {
		return []string{def}, nil
	}
	return slices.Clone(list), nil
}

func evaluateTokens(ctx context.Context, eval Evaluator, expr *string, def string) ([]string, error) {
	if expr == nil {
		return []string{def}, nil
	}
	v, err := eval.Evaluate(ctx, *expr)
	if err != nil {
		return nil, err
	}

	var tokens []string
	switch val := v.(type) {
	case nil:
	case string:
		tokens = strings.Fields(val)
	case []string:
		tokens = slices.Clone(val)
	case []any:
		tokens = make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, invalidDeclaration("collection element %#v is not a string", item)
			}
			tokens = append(tokens, s)
		}
	default:
		return nil, invalidDeclaration("unsupported value %#v (%T)", v, v)
	}

	if len(tokens) == 0 {
		return []string{def}, nil
	}
	return tokens, nil
}
