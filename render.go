package hxbus

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/hxbus/internal/metrics"
)

const quote = '\''

// writeQuoted writes s between single quotes. Quotes inside s are not
// escaped: addresses, groups and event names containing a quote are
// malformed input.
func writeQuoted(sb *strings.Builder, s string) {
	sb.WriteByte(quote)
	sb.WriteString(s)
	sb.WriteByte(quote)
}

// RegisterCall builds the client registration line for one descriptor:
//
//	hxbus.register('group','event','observer','execute','render');
//
// Execute and render are resolved against the observer's node and joined
// with single spaces. The argument order is part of the wire contract.
func (o *Observer) RegisterCall(d EventDescriptor) (string, error) {
	root := o.node
	if root == nil {
		return "", invalidDeclaration("observer is not bound to a node")
	}

	execute, err := ResolveList(root, d.Execute)
	if err != nil {
		return "", err
	}
	if len(execute) == 0 {
		execute = []string{DefaultExecute}
	}
	render, err := ResolveList(root, d.Render)
	if err != nil {
		return "", err
	}
	if len(render) == 0 {
		render = []string{DefaultRender}
	}

	var sb strings.Builder
	sb.WriteString(RuntimeNamespace)
	sb.WriteString(".register(")
	writeQuoted(&sb, o.Group())
	sb.WriteByte(',')
	writeQuoted(&sb, d.Event)
	sb.WriteByte(',')
	writeQuoted(&sb, root.ClientID())
	sb.WriteByte(',')
	writeQuoted(&sb, strings.Join(execute, " "))
	sb.WriteByte(',')
	writeQuoted(&sb, strings.Join(render, " "))
	sb.WriteString(");")
	return sb.String(), nil
}

// Encode writes the observer markup: a span carrying the observer's
// address around a script with one register call per descriptor, in
// registration order. Nothing is written if the observer is not bound to
// a node or a reference fails to resolve.
func (o *Observer) Encode(w io.Writer) error {
	return o.encode(w, nil)
}

func (o *Observer) encode(w io.Writer, attrs templ.Attributes) error {
	if o.node == nil {
		return invalidDeclaration("observer is not bound to a node")
	}
	var buf bytes.Buffer
	if err := writeOpenTag(&buf, "span", o.ClientID(), attrs); err != nil {
		return err
	}
	buf.WriteString("<script>\n")

	for d := range o.Registrations() {
		call, err := o.RegisterCall(d)
		if err != nil {
			if IsUnresolved(err) {
				metrics.ResolutionFailures.Inc()
			}
			return err
		}
		buf.WriteString(call)
		buf.WriteByte('\n')
		metrics.Registrations.WithLabelValues(o.Group()).Inc()
	}

	buf.WriteString(`</script></span>`)
	_, err := w.Write(buf.Bytes())
	return err
}

// Component returns the observer markup as a templ component. The
// registration table must already be filled for the current pass (see
// Apply); Component does not evaluate declarations.
func (o *Observer) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return o.Encode(w)
	})
}
