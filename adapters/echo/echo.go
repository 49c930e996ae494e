// Package hxbusecho provides Echo framework integration for hxbus pages.
//
// Mount a page and the client runtime on an Echo instance:
//
//	e := echo.New()
//	hxbusecho.MountRuntime(e)
//	hxbusecho.Mount(e, "/orders", doc.Build)
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	hxbusecho.MountGroup(g, "/orders", doc.Build)
package hxbusecho

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxbus"
	"github.com/pthm/hxbus/lib/runtime"
)

// BuildFunc creates a fresh element tree for one request.
type BuildFunc func() (*hxbus.Element, error)

// Option configures the Mount and MountGroup functions.
type Option func(*options)

type options struct {
	key       []byte
	sensitive bool
	reg       *hxbus.Registry
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

// WithRegistry sets the kind registry of the mounted page.
func WithRegistry(reg *hxbus.Registry) Option {
	return func(o *options) {
		o.reg = reg
	}
}

// Mount serves the page built by build at path on an Echo instance.
//
//	e := echo.New()
//	hxbusecho.Mount(e, "/orders", doc.Build)
//
//	// With options:
//	hxbusecho.Mount(e, "/orders", doc.Build, hxbusecho.WithKey(key))
func Mount(e *echo.Echo, path string, build BuildFunc, opts ...Option) {
	h := handler(build, opts)
	e.GET(path, h)
	e.HEAD(path, h)
	e.POST(path, h)
}

// MountGroup serves the page on an Echo group. This allows pages to share
// middleware with the group (auth, logging, etc.).
//
//	g := e.Group("/app", authMiddleware)
//	hxbusecho.MountGroup(g, "/orders", doc.Build)
func MountGroup(g *echo.Group, path string, build BuildFunc, opts ...Option) {
	h := handler(build, opts)
	g.GET(path, h)
	g.HEAD(path, h)
	g.POST(path, h)
}

// MountRuntime serves the client runtime at runtime.Path.
func MountRuntime(e *echo.Echo) {
	h := echo.WrapHandler(runtime.Handler())
	e.GET(runtime.Path, h)
	e.HEAD(runtime.Path, h)
}

func handler(build BuildFunc, opts []Option) echo.HandlerFunc {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("hxbusecho: failed to generate random key: %v", err))
		}
	}
	codec, err := hxbus.NewCodec(key)
	if err != nil {
		panic(fmt.Sprintf("hxbusecho: %v", err))
	}

	pageOpts := []hxbus.PageOption{hxbus.WithCodec(codec, o.sensitive)}
	if o.reg != nil {
		pageOpts = append(pageOpts, hxbus.WithRegistry(o.reg))
	}

	return func(c echo.Context) error {
		root, err := build()
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "build page").SetInternal(err)
		}
		page, err := hxbus.NewPage(root, pageOpts...)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "compose page").SetInternal(err)
		}
		page.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return hxbusecho.Render(c, layout(page.Component(nil)))
//	}
func Render(c echo.Context, component templ.Component) error {
	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(c.Request().Context(), c.Response())
}
