// Package expr evaluates declaration attributes against request-scoped
// data using jq expressions.
//
// An attribute is literal text unless it contains ${...} placeholders:
//
//	"panel1 panel2"            -> "panel1 panel2"
//	"${ .selection.ids }"      -> []any{"row1", "row2"}
//	"summary ${ .params.tab }" -> "summary details"
//
// A value made of a single placeholder keeps the type of the jq result,
// so collections reach the descriptor as collections. Placeholders inside
// text are interpolated, collections joined with spaces.
package expr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/pthm/hxbus"
)

// Engine compiles and caches jq queries. It is safe for concurrent use.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// New creates an engine.
func New() *Engine {
	return &Engine{cache: make(map[string]*gojq.Code)}
}

// Bind returns an evaluator over data. data must be made of JSON-like
// values (maps with string keys, []any, strings, numbers, bools, nil).
func (e *Engine) Bind(data any) hxbus.Evaluator {
	return hxbus.EvaluatorFunc(func(ctx context.Context, expr string) (any, error) {
		return e.Eval(ctx, expr, data)
	})
}

// ForRequest returns an evaluator factory for hxbus.WithEvaluator. The
// data of each request is RequestData(r) merged with model(r).
func (e *Engine) ForRequest(model func(*http.Request) map[string]any) func(*http.Request) hxbus.Evaluator {
	return func(r *http.Request) hxbus.Evaluator {
		data := RequestData(r)
		if model != nil {
			for k, v := range model(r) {
				data[k] = v
			}
		}
		return e.Bind(data)
	}
}

// Eval evaluates expr against data.
func (e *Engine) Eval(ctx context.Context, expr string, data any) (any, error) {
	if !strings.Contains(expr, "${") {
		return expr, nil
	}

	parts, err := split(expr)
	if err != nil {
		return nil, err
	}
	if len(parts) == 1 && parts[0].query {
		return e.run(ctx, parts[0].text, data)
	}

	var sb strings.Builder
	for _, p := range parts {
		if !p.query {
			sb.WriteString(p.text)
			continue
		}
		v, err := e.run(ctx, p.text, data)
		if err != nil {
			return nil, err
		}
		sb.WriteString(flatten(v))
	}
	return sb.String(), nil
}

// run executes a query. No result is nil, one result is returned as is,
// several results are collected into a []any.
func (e *Engine) run(ctx context.Context, query string, data any) (any, error) {
	code, err := e.compile(query)
	if err != nil {
		return nil, err
	}

	var results []any
	iter := code.RunWithContext(ctx, data)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if herr, ok := err.(*gojq.HaltError); ok && herr.Value() == nil {
				break
			}
			return nil, fmt.Errorf("expr: %q: %w", query, err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (e *Engine) compile(query string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.cache[query]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, fmt.Errorf("expr: parse %q: %w", query, err)
	}
	code, err = gojq.Compile(parsed)
	if err != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", query, err)
	}

	e.mu.Lock()
	e.cache[query] = code
	e.mu.Unlock()
	return code, nil
}

type part struct {
	text  string
	query bool
}

// split cuts expr into literal text and ${...} queries. Surrounding
// whitespace of a lone placeholder is dropped.
func split(expr string) ([]part, error) {
	trimmed := strings.TrimSpace(expr)
	var parts []part
	rest := trimmed
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			if rest != "" {
				parts = append(parts, part{text: rest})
			}
			return parts, nil
		}
		if start > 0 {
			parts = append(parts, part{text: rest[:start]})
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			return nil, fmt.Errorf("expr: unterminated placeholder in %q", expr)
		}
		parts = append(parts, part{text: strings.TrimSpace(rest[start+2 : start+end]), query: true})
		rest = rest[start+end+1:]
	}
}

func flatten(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, flatten(item))
		}
		return strings.Join(items, " ")
	default:
		return fmt.Sprint(val)
	}
}

// RequestData exposes request parameters to expressions as .params
// (first value per key) and .values (every value per key).
func RequestData(r *http.Request) map[string]any {
	params := map[string]any{}
	values := map[string]any{}
	if err := r.ParseForm(); err == nil {
		for k, vs := range r.Form {
			if len(vs) > 0 {
				params[k] = vs[0]
			}
			items := make([]any, 0, len(vs))
			for _, v := range vs {
				items = append(items, v)
			}
			values[k] = items
		}
	}
	return map[string]any{"params": params, "values": values}
}
