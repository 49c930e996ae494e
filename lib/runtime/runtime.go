// Package runtime embeds and serves the hxbus client runtime.
//
// The runtime keeps the client side of the bus: it collects the
// register calls emitted by observers, routes dispatched events to the
// observers of a group and issues the round trip request through htmx.
package runtime

import (
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/a-h/templ"
)

// Path is where the runtime is served by default.
const Path = "/_hxbus/hxbus.js"

//go:embed hxbus.js
var source []byte

var etag = func() string {
	sum := sha256.Sum256(source)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

// Source returns the runtime script.
func Source() []byte {
	return source
}

// Handler serves the runtime script.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("ETag", etag)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(source)
	})
}

// Script renders the script tag loading the runtime from src (Path when
// empty).
func Script(src string) templ.Component {
	if src == "" {
		src = Path
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<script src="`+templ.EscapeString(src)+`"></script>`)
		return err
	})
}

// Connect renders an inline script subscribing the page to server pushes
// for group over the websocket at path.
func Connect(group, path string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<script>hxbus.connect("+jsString(group)+","+jsString(path)+");</script>")
		return err
	})
}

// jsString quotes s as a JavaScript string literal safe inside a script
// element.
func jsString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			out = append(out, '\\', byte(r))
		case '<':
			out = append(out, `\u003c`...)
		case '>':
			out = append(out, `\u003e`...)
		case '\n':
			out = append(out, `\n`...)
		default:
			out = append(out, string(r)...)
		}
	}
	return string(append(out, '"'))
}
