// Package hxbuschi provides chi router integration for hxbus pages.
//
// Mount a page declaration and the runtime endpoints on a router:
//
//	r := chi.NewRouter()
//	m := hxbuschi.New(hxbuschi.WithKey(key), hxbuschi.WithBroker(broker))
//	m.MountRuntime(r)
//	m.Mount(r, "/orders", doc.Build)
package hxbuschi

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/pthm/hxbus"
	"github.com/pthm/hxbus/lib/push"
	"github.com/pthm/hxbus/lib/runtime"
)

// PublishPath is where the publish endpoint is mounted when a broker is
// configured.
const PublishPath = "/_hxbus/publish"

// BuildFunc creates a fresh element tree for one request.
type BuildFunc func() (*hxbus.Element, error)

// Option configures a Mounter.
type Option func(*options)

type options struct {
	key         []byte
	sensitive   bool
	noState     bool
	runtimePath string
	reg         *hxbus.Registry
	eval        func(*http.Request) hxbus.Evaluator
	logger      zerolog.Logger
	broker      push.Broker
}

// WithKey sets the view state key.
// The key should be at least 32 bytes of cryptographically random data.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithSensitiveState encrypts the view state instead of signing it.
func WithSensitiveState() Option {
	return func(o *options) {
		o.sensitive = true
	}
}

// WithoutState disables view state.
func WithoutState() Option {
	return func(o *options) {
		o.noState = true
	}
}

// WithRuntimePath sets the URL of the client runtime. Defaults to
// runtime.Path.
func WithRuntimePath(path string) Option {
	return func(o *options) {
		o.runtimePath = path
	}
}

// WithRegistry sets the kind registry of mounted pages.
func WithRegistry(reg *hxbus.Registry) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// WithEvaluator sets the per-request evaluator factory of mounted pages.
func WithEvaluator(fn func(*http.Request) hxbus.Evaluator) Option {
	return func(o *options) {
		o.eval = fn
	}
}

// WithLogger sets the logger of mounted pages and handlers.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithBroker enables the websocket and publish endpoints.
func WithBroker(b push.Broker) Option {
	return func(o *options) {
		o.broker = b
	}
}

// Mounter mounts pages sharing one configuration.
type Mounter struct {
	opts  options
	codec *hxbus.Codec
}

// New creates a Mounter. It panics if no random key can be generated.
func New(opts ...Option) *Mounter {
	o := options{runtimePath: runtime.Path, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	m := &Mounter{opts: o}
	if o.noState {
		return m
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxbuschi: failed to generate random key: %v", err))
		}
	}
	codec, err := hxbus.NewCodec(key)
	if err != nil {
		panic(fmt.Sprintf("hxbuschi: %v", err))
	}
	m.codec = codec
	return m
}

// PageOptions returns the page options derived from the configuration.
func (m *Mounter) PageOptions() []hxbus.PageOption {
	opts := []hxbus.PageOption{hxbus.WithLogger(m.opts.logger)}
	if m.codec != nil {
		opts = append(opts, hxbus.WithCodec(m.codec, m.opts.sensitive))
	}
	if m.opts.reg != nil {
		opts = append(opts, hxbus.WithRegistry(m.opts.reg))
	}
	if m.opts.eval != nil {
		opts = append(opts, hxbus.WithEvaluator(m.opts.eval))
	}
	return opts
}

// Handler returns a handler composing a fresh page from build for every
// request.
func (m *Mounter) Handler(build BuildFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		root, err := build()
		if err != nil {
			m.opts.logger.Error().Err(err).Str("path", r.URL.Path).Msg("build page")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		page, err := hxbus.NewPage(root, m.PageOptions()...)
		if err != nil {
			m.opts.logger.Error().Err(err).Str("path", r.URL.Path).Msg("compose page")
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		page.ServeHTTP(w, r)
	})
}

// Mount serves the page built by build at pattern for GET and POST.
func (m *Mounter) Mount(r chi.Router, pattern string, build BuildFunc) {
	h := m.Handler(build)
	r.Get(pattern, h.ServeHTTP)
	r.Head(pattern, h.ServeHTTP)
	r.Post(pattern, h.ServeHTTP)
}

// MountRuntime serves the client runtime and, when a broker is
// configured, the websocket and publish endpoints.
func (m *Mounter) MountRuntime(r chi.Router) {
	r.Method(http.MethodGet, m.opts.runtimePath, runtime.Handler())
	r.Method(http.MethodHead, m.opts.runtimePath, runtime.Handler())
	if m.opts.broker == nil {
		return
	}
	r.Method(http.MethodGet, push.WebSocketPath, push.NewWebSocketHandler(m.opts.broker, push.WithLogger(m.opts.logger)))
	r.Method(http.MethodPost, PublishPath, push.PublishHandler(m.opts.broker))
}

// Script returns the script tag loading the client runtime.
func (m *Mounter) Script() templ.Component {
	return runtime.Script(m.opts.runtimePath)
}

// Render writes a templ component as an HTML response.
//
//	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
//	    hxbuschi.Render(w, r, layout(page.Component(nil)))
//	})
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) {
	if err := hxbus.Render(w, r, component); err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
