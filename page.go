package hxbus

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/a-h/templ"
	"github.com/rs/zerolog"
)

// StateInputID is the id of the hidden input carrying the view state.
const StateInputID = "hxbus-state"

// Page composes an element tree with the bus: it renders observers and
// producers and runs the inbound round trip of the client runtime.
//
// A Page is request scoped. Build one per request from immutable
// declarations (see lib/decl) so that registration tables are never
// shared between concurrent requests.
type Page struct {
	root      *Element
	reg       *Registry
	codec     *Codec
	sensitive bool
	eval      func(*http.Request) Evaluator
	logger    zerolog.Logger
	observers []*Element

	// OnError is called when the round trip fails.
	// Customize this to handle errors appropriately for your application.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// PageOption configures a Page.
type PageOption func(*Page)

// WithRegistry sets the kind registry. Defaults to NewRegistry().
func WithRegistry(reg *Registry) PageOption {
	return func(p *Page) {
		p.reg = reg
	}
}

// WithCodec enables view state. Sensitive state is encrypted rather
// than signed.
func WithCodec(codec *Codec, sensitive bool) PageOption {
	return func(p *Page) {
		p.codec = codec
		p.sensitive = sensitive
	}
}

// WithEvaluator sets the per-request evaluator factory used for
// declaration attributes. Defaults to Literal.
func WithEvaluator(fn func(*http.Request) Evaluator) PageOption {
	return func(p *Page) {
		p.eval = fn
	}
}

// WithLogger sets the page logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) PageOption {
	return func(p *Page) {
		p.logger = logger
	}
}

// NewPage composes root and validates its declarations.
func NewPage(root *Element, opts ...PageOption) (*Page, error) {
	p := &Page{
		root:   root,
		eval:   func(*http.Request) Evaluator { return Literal },
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.reg == nil {
		p.reg = NewRegistry()
	}

	p.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case IsStateError(err):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			p.logger.Error().Err(err).Str("path", r.URL.Path).Msg("round trip failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}

	if err := Compose(root, p.reg); err != nil {
		return nil, err
	}

	var verr error
	root.Walk(func(e *Element) bool {
		if e.Kind == KindObserver && e.Observer == nil {
			e.Observer = NewObserver("").Bind(e)
		}
		if e.Observer != nil {
			for _, d := range e.Observer.decls {
				if err := d.Validate(); err != nil && verr == nil {
					verr = fmt.Errorf("%s: %w", e.ClientID(), err)
				}
			}
			p.observers = append(p.observers, e)
		}
		for _, pr := range e.Producers {
			if err := pr.Validate(); err != nil && verr == nil {
				verr = fmt.Errorf("%s: %w", e.ClientID(), err)
			}
		}
		if len(e.Producers) > 0 && !e.behavior.ClientBehaviors {
			// Composite hosts are not supported yet; the producers stay inert.
			p.logger.Debug().
				Str("element", e.ClientID()).
				Str("kind", string(e.Kind)).
				Msg("producer attached to an element without client behaviors, ignored")
		}
		return true
	})
	if verr != nil {
		return nil, verr
	}
	return p, nil
}

// Root returns the page's root element.
func (p *Page) Root() *Element {
	return p.root
}

// Observer returns the observer at clientID, or nil.
func (p *Page) Observer(clientID string) *Observer {
	for _, e := range p.observers {
		if e.ClientID() == clientID {
			return e.Observer
		}
	}
	return nil
}

// Observers returns the page's observers in document order.
func (p *Page) Observers() []*Observer {
	out := make([]*Observer, 0, len(p.observers))
	for _, e := range p.observers {
		out = append(out, e.Observer)
	}
	return out
}

// OnAction attaches a listener to the observer at clientID.
func (p *Page) OnAction(clientID string, l ActionListener) error {
	o := p.Observer(clientID)
	if o == nil {
		return &ResolutionError{Reference: clientID, Root: p.root.ClientID(), Suggestion: suggest(p.root, clientID)}
	}
	o.OnAction(l)
	return nil
}

// Render runs a render pass over the whole page, followed by the view
// state input when a codec is configured.
func (p *Page) Render(ctx context.Context, w io.Writer, eval Evaluator) error {
	ctx = WithPhase(ctx, PhaseRenderResponse)
	var buf bytes.Buffer
	if err := p.renderElement(ctx, &buf, p.root, eval, nil); err != nil {
		return err
	}
	if err := p.renderState(&buf, nil); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Component returns the full page render as a templ component, for
// embedding into a layout.
func (p *Page) Component(eval Evaluator) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return p.Render(ctx, w, eval)
	})
}

// renderElement renders e and its subtree. Observers rebuild their
// registration table from their declarations right before they render.
func (p *Page) renderElement(ctx context.Context, w io.Writer, e *Element, eval Evaluator, extra templ.Attributes) error {
	if e.Observer != nil {
		e.Observer.BeginPass()
		if err := e.Observer.Apply(ctx, eval); err != nil {
			return fmt.Errorf("%s: %w", e.ClientID(), err)
		}
	}

	attrs := templ.Attributes{}
	for k, v := range e.Attrs {
		attrs[k] = v
	}
	if e.behavior.ClientBehaviors && len(e.Producers) > 0 {
		for k, v := range ProducerAttrs(e.Producers...) {
			attrs[k] = v
		}
	}
	for k, v := range extra {
		attrs[k] = v
	}

	children := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range e.Children {
			if err := p.renderElement(ctx, w, c, eval, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if e.behavior.Render == nil {
		return children.Render(ctx, w)
	}
	return e.behavior.Render(ctx, w, e, attrs, children)
}

func (p *Page) renderState(w io.Writer, extra templ.Attributes) error {
	if p.codec == nil {
		return nil
	}
	token, err := p.codec.EncodeValue(pageState{root: p.root}, p.sensitive)
	if err != nil {
		return err
	}
	attrs := templ.Attributes{"type": "hidden", "name": FieldState, "value": token}
	for k, v := range extra {
		attrs[k] = v
	}
	return writeOpenTag(w, "input", StateInputID, attrs)
}

// ServeHTTP renders the page for GET requests and runs the round trip
// for everything else.
//
// A round trip restores the view state, lets the observers inside the
// execute set decode the request, delivers immediate action events, then
// invoke-application events, and finally renders the render set as
// out-of-band fragments. Dispatches emitted by listeners are returned in
// the HX-Trigger header.
func (p *Page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	eval := p.eval(r)

	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		var buf bytes.Buffer
		if err := p.Render(r.Context(), &buf, eval); err != nil {
			p.OnError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
		return
	}

	// CSRF protection: mutating methods require HX-Request header
	if !IsHTMX(r) {
		http.Error(w, "Forbidden: HTMX request required", http.StatusForbidden)
		return
	}

	body, dispatches, err := p.roundTrip(r, eval)
	if err != nil {
		p.OnError(w, r, err)
		return
	}

	if h := BuildDispatchHeader(dispatches...); h != "" {
		w.Header().Set("HX-Trigger", h)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(body)
}

func (p *Page) roundTrip(r *http.Request, eval Evaluator) ([]byte, []Dispatch, error) {
	ctx := WithPhase(r.Context(), PhaseRestoreView)
	collector := &dispatchCollector{}
	ctx = context.WithValue(ctx, dispatchKey{}, collector)

	if token := r.FormValue(FieldState); token != "" && p.codec != nil {
		if err := p.codec.DecodeValue(token, p.sensitive, pageState{root: p.root}); err != nil {
			return nil, nil, wrapStateError(err)
		}
	}

	source := SourceID(r)
	queue := NewEventQueue()
	for _, e := range p.executeTargets(ExecuteSet(r), source) {
		e.Walk(func(n *Element) bool {
			if n.Observer != nil && n.Observer.Decode(r, queue) {
				p.logger.Debug().Str("observer", n.ClientID()).Msg("action queued")
			}
			return true
		})
	}

	if err := queue.Deliver(ctx, PhaseApplyRequestValues); err != nil {
		return nil, nil, err
	}
	if err := queue.Deliver(ctx, PhaseInvokeApplication); err != nil {
		return nil, nil, err
	}

	ctx = WithPhase(ctx, PhaseRenderResponse)
	var buf bytes.Buffer
	oob := templ.Attributes{"hx-swap-oob": "true"}
	for _, e := range p.renderTargets(RenderSet(r), source) {
		if err := p.renderElement(ctx, &buf, e, eval, oob); err != nil {
			return nil, nil, err
		}
	}
	if err := p.renderState(&buf, oob); err != nil {
		return nil, nil, err
	}
	return buf.Bytes(), collector.dispatches, nil
}

// executeTargets maps execute tokens to the subtrees that decode.
// Unknown addresses are skipped.
func (p *Page) executeTargets(set []string, source string) []*Element {
	return p.targets(set, source, false)
}

// renderTargets maps render tokens to the elements re-rendered.
func (p *Page) renderTargets(set []string, source string) []*Element {
	return p.targets(set, source, true)
}

func (p *Page) targets(set []string, source string, warn bool) []*Element {
	var out []*Element
	seen := make(map[*Element]bool)
	add := func(e *Element) {
		if e != nil && !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	for _, token := range set {
		switch token {
		case TokenNone:
		case TokenAll:
			add(p.root)
		case TokenThis:
			add(p.root.Lookup(source))
		case TokenForm:
			if e := p.root.Lookup(source); e != nil {
				add(enclosingForm(e))
			}
		default:
			e := p.root.Lookup(token)
			if e == nil {
				if warn {
					p.logger.Warn().Str("address", token).Msg("render target not found")
				}
				continue
			}
			add(e)
		}
	}
	return out
}

func enclosingForm(e *Element) *Element {
	for n := e; n != nil; n = n.parent {
		if n.Kind == KindForm {
			return n
		}
	}
	return nil
}

type dispatchKey struct{}

type dispatchCollector struct {
	dispatches []Dispatch
}

// Emit asks the client runtime to dispatch events in group once the
// current round trip completes. It returns false when ctx does not belong
// to a round trip.
//
//	page.OnAction("form:orders", func(ctx context.Context, ev hxbus.ActionEvent) error {
//	    hxbus.Emit(ctx, "orders", "refreshed")
//	    return nil
//	})
func Emit(ctx context.Context, group, events string) bool {
	c, ok := ctx.Value(dispatchKey{}).(*dispatchCollector)
	if !ok {
		return false
	}
	if group == "" {
		group = DefaultGroup
	}
	c.dispatches = append(c.dispatches, Dispatch{Group: group, Events: events})
	return true
}
