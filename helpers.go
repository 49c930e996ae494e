package hxbus

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// Request fields written by the client runtime.
const (
	FieldSource  = "hxbus.source"
	FieldExecute = "hxbus.execute"
	FieldRender  = "hxbus.render"
	FieldState   = "hxbus.state"
)

// DispatchEventName is the HX-Trigger event the client runtime turns into
// dispatch calls.
const DispatchEventName = "hxbus:dispatch"

// Render writes a templ component to the HTTP response.
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    hxbus.Render(w, r, layout(page))
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsHTMX returns true if the request originated from HTMX.
func IsHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// SourceID returns the address of the element that issued the round trip.
//
// The client runtime sends it as the hxbus.source form field; plain htmx
// requests carry it in the HX-Trigger header. Returns "" when neither is
// present.
func SourceID(r *http.Request) string {
	if v := r.FormValue(FieldSource); v != "" {
		return v
	}
	return TriggerID(r)
}

// TriggerID returns the id attribute of the element that triggered the request.
//
// Returns empty string if not present.
func TriggerID(r *http.Request) string {
	return r.Header.Get("HX-Trigger")
}

// ExecuteSet returns the execute addresses of the round trip. An absent
// field means the source element only.
func ExecuteSet(r *http.Request) []string {
	set := strings.Fields(r.FormValue(FieldExecute))
	if len(set) == 0 {
		return []string{TokenThis}
	}
	return set
}

// RenderSet returns the render addresses of the round trip. An absent
// field means nothing is re-rendered.
func RenderSet(r *http.Request) []string {
	set := strings.Fields(r.FormValue(FieldRender))
	if len(set) == 0 {
		return []string{TokenNone}
	}
	return set
}

// Dispatch is a server-originated broadcast: the client runtime
// dispatches Events (space separated) in Group once the response settles.
type Dispatch struct {
	Group  string `json:"group"`
	Events string `json:"events"`
}

// BuildDispatchHeader builds the HX-Trigger header value carrying the
// given dispatches:
//
//	{"hxbus:dispatch":[{"group":"orders","events":"saved"}]}
//
// Returns "" when there is nothing to dispatch.
func BuildDispatchHeader(ds ...Dispatch) string {
	if len(ds) == 0 {
		return ""
	}
	data, _ := json.Marshal(map[string]any{DispatchEventName: ds})
	return string(data)
}
