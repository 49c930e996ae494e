package hxbus

import (
	"context"
)

// Node is a resolution root: an element of the page tree that knows its
// own absolute address and can look up other elements relative to itself.
//
// The page framework owns the tree. *Element is the default
// implementation; applications with their own component tree implement
// Node to plug it into the resolver.
//
// Example:
//
//	type widget struct{ id string; page *myTree }
//
//	func (w *widget) ClientID() string { return w.page.prefix + w.id }
//	func (w *widget) Find(ref string) (hxbus.Node, bool) {
//	    return w.page.lookup(w, ref)
//	}
type Node interface {
	ClientID() string
	Find(ref string) (Node, bool)
}

// CandidateLister is optionally implemented by nodes that can enumerate the
// ids reachable from them. The resolver uses it to suggest a correction
// when a reference does not resolve.
type CandidateLister interface {
	Candidates() []string
}

// Evaluator evaluates a raw declaration attribute against request-scoped
// data. It is called during the render-response phase only.
//
// The returned value is either a string (whitespace-separated tokens), a
// []string or []any collection (one token per element), or nil.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string) (any, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, expr string) (any, error)

// Evaluate calls f(ctx, expr).
func (f EvaluatorFunc) Evaluate(ctx context.Context, expr string) (any, error) {
	return f(ctx, expr)
}

// Literal is the Evaluator that returns every expression unchanged.
var Literal Evaluator = EvaluatorFunc(func(_ context.Context, expr string) (any, error) {
	return expr, nil
})

// ActionListener is invoked when an observer's action event is delivered.
type ActionListener func(ctx context.Context, ev ActionEvent) error
