package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/pthm/hxbus"
	hxbuschi "github.com/pthm/hxbus/adapters/chi"
)

// Kinds rendering store data.
const (
	kindCounter hxbus.Kind = "counter"
	kindLog     hxbus.Kind = "log"
)

func main() {
	// Create store
	store := NewStore()

	reg := hxbus.NewRegistry()
	reg.Add(kindCounter, hxbus.Behavior{Render: renderCounter(store)})
	reg.Add(kindLog, hxbus.Behavior{Render: renderLog(store)})

	// In production, use a real secret.
	m := hxbuschi.New(
		hxbuschi.WithKey([]byte("example-key-must-be-32-bytes!!")),
		hxbuschi.WithRegistry(reg),
	)

	r := chi.NewRouter()
	m.MountRuntime(r)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		page, err := newPage(store, m)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hxbuschi.Render(w, r, layout(m.Script(), page.Component(nil)))
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		page, err := newPage(store, m)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		page.ServeHTTP(w, r)
	})

	// Start server
	addr := ":8080"
	fmt.Printf("Starting server at http://localhost%s\n", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal(err)
	}
}

// newPage builds:
//
//	page
//	└── form
//	    ├── inc (button, click -> counter/incremented)
//	    ├── watcher (observer in counter, renders value)
//	    ├── value (counter)
//	    ├── audit (observer in audit, renders history)
//	    └── history (log)
//
// The watcher increments the store when notified and asks the audit
// observer to refresh the history.
func newPage(store *Store, m *hxbuschi.Mounter) (*hxbus.Page, error) {
	inc := hxbus.NewElement(hxbus.KindButton, "inc")
	inc.Text = "+1"
	inc.Producers = []hxbus.Producer{hxbus.NewProducer("click", "incremented").InGroup("counter")}

	watcher := hxbus.NewElement(hxbus.KindObserver, "watcher")
	watcher.Observer = hxbus.NewObserver("counter").On(hxbus.OnEvent{
		Event:  "incremented",
		Render: hxbus.Ref("value"),
	})

	audit := hxbus.NewElement(hxbus.KindObserver, "audit")
	audit.Observer = hxbus.NewObserver("audit").On(hxbus.OnEvent{
		Event:  "changed",
		Render: hxbus.Ref("history"),
	})

	root := hxbus.NewElement(hxbus.KindPage, "page",
		hxbus.NewElement(hxbus.KindForm, "form",
			inc,
			watcher,
			hxbus.NewElement(kindCounter, "value"),
			audit,
			hxbus.NewElement(kindLog, "history"),
		),
	)

	page, err := hxbus.NewPage(root, m.PageOptions()...)
	if err != nil {
		return nil, err
	}
	err = page.OnAction("form:watcher", func(ctx context.Context, ev hxbus.ActionEvent) error {
		store.Increment("clicks", 1)
		hxbus.Emit(ctx, "audit", "changed")
		return nil
	})
	return page, err
}

func renderCounter(store *Store) hxbus.RenderFunc {
	return func(ctx context.Context, w io.Writer, e *hxbus.Element, attrs templ.Attributes, _ templ.Component) error {
		_, err := fmt.Fprintf(w, `<output id="%s"%s>%d</output>`,
			templ.EscapeString(e.ClientID()), oobAttr(attrs), store.Get("clicks"))
		return err
	}
}

func renderLog(store *Store) hxbus.RenderFunc {
	return func(ctx context.Context, w io.Writer, e *hxbus.Element, attrs templ.Attributes, _ templ.Component) error {
		if _, err := fmt.Fprintf(w, `<ul id="%s"%s>`, templ.EscapeString(e.ClientID()), oobAttr(attrs)); err != nil {
			return err
		}
		for _, entry := range store.Recent(5) {
			line := entry.At.Format("15:04:05") + " " + entry.Counter + " = " + strconv.Itoa(entry.Value)
			if _, err := io.WriteString(w, "<li>"+templ.EscapeString(line)+"</li>"); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, "</ul>")
		return err
	}
}

func oobAttr(attrs templ.Attributes) string {
	if v, ok := attrs["hx-swap-oob"].(string); ok {
		return ` hx-swap-oob="` + templ.EscapeString(v) + `"`
	}
	return ""
}

func layout(script, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html><head><title>hxbus counter</title>`+
			`<script src="https://unpkg.com/htmx.org@2.0.4"></script>`); err != nil {
			return err
		}
		if err := script.Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `</head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
