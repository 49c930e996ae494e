package hxbus

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

// mockHandler records the request it receives.
type mockHandler struct {
	handler    func(w http.ResponseWriter, r *http.Request)
	lastMethod string
	lastPath   string
	lastReq    *http.Request
}

func (m *mockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.lastMethod = r.Method
	m.lastPath = r.URL.Path
	m.lastReq = r
	if m.handler != nil {
		m.handler(w, r)
	}
}

func TestTestRenderObserver_Unbound(t *testing.T) {
	o := NewObserver("g").On(OnEvent{Event: "e"})
	if _, err := TestRenderObserver(context.Background(), o, nil); !IsInvalidDeclaration(err) {
		t.Errorf("TestRenderObserver() error = %v, want ErrInvalidDeclaration", err)
	}
}

func TestTestRenderObserver_EvaluatorError(t *testing.T) {
	_, _, obs1 := fixture(t)
	obs1.Observer.On(OnEvent{Event: "${missing}"})

	eval := EvaluatorFunc(func(context.Context, string) (any, error) {
		return nil, errors.New("missing")
	})
	result, err := TestRenderObserver(context.Background(), obs1.Observer, eval)
	if err == nil {
		t.Fatal("TestRenderObserver() expected error, got nil")
	}
	if result != nil {
		t.Error("expected nil result on error")
	}
}

func TestTestRequestBuilder_Source(t *testing.T) {
	h := &mockHandler{}

	b := NewTestRequest(http.MethodPost, "/orders").WithFormData(FieldSource, "form:orders")
	if _, err := b.Execute(h); err != nil {
		t.Fatal(err)
	}
	if h.lastMethod != http.MethodPost || h.lastPath != "/orders" {
		t.Errorf("request = %s %s", h.lastMethod, h.lastPath)
	}
	if got := SourceID(h.lastReq); got != "form:orders" {
		t.Errorf("SourceID() = %q", got)
	}
}

func TestTestRequestBuilder(t *testing.T) {
	var (
		hxRequest string
		custom    string
		name      string
	)
	h := &mockHandler{
		handler: func(w http.ResponseWriter, r *http.Request) {
			hxRequest = r.Header.Get("HX-Request")
			custom = r.Header.Get("X-Custom")
			name = r.FormValue("name")
			w.Header().Set("HX-Trigger", BuildDispatchHeader(Dispatch{Group: "g1", Events: "saved refreshed"}))
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("<span id=\"o\"><script>\nhxbus.register('g1','saved','o','@this','@none');\n</script></span>"))
		},
	}

	result, err := NewTestRequest(http.MethodPost, "/").
		WithFormData("name", "Alice").
		WithHeader("X-Custom", "header").
		Execute(h)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if hxRequest != "true" {
		t.Errorf("HX-Request header = %q, want 'true'", hxRequest)
	}
	if custom != "header" {
		t.Errorf("X-Custom header = %q", custom)
	}
	if name != "Alice" {
		t.Errorf("form name = %q, want Alice", name)
	}
	if !result.HasStatus(http.StatusAccepted) || result.IsOK() {
		t.Errorf("StatusCode = %d", result.StatusCode)
	}
	if !result.HasDispatch("g1", "saved") || !result.HasDispatch("g1", "refreshed") {
		t.Errorf("Dispatches = %v", result.Dispatches)
	}
	if result.HasDispatch("g2", "saved") || result.HasDispatch("g1", "save") {
		t.Error("HasDispatch() matched a dispatch that was not sent")
	}
	if len(result.RegisterCalls) != 1 || result.RegisterCalls[0].Observer != "o" {
		t.Errorf("RegisterCalls = %v", result.RegisterCalls)
	}
}

func TestTestRequestBuilder_WithoutHTMX(t *testing.T) {
	var hxRequest string
	h := &mockHandler{
		handler: func(w http.ResponseWriter, r *http.Request) {
			hxRequest = r.Header.Get("HX-Request")
		},
	}

	if _, err := NewTestRequest(http.MethodPost, "/").WithoutHTMX().Execute(h); err != nil {
		t.Fatal(err)
	}
	if hxRequest != "" {
		t.Errorf("HX-Request header = %q, want empty", hxRequest)
	}
}

func TestTestRequestBuilder_WithContext(t *testing.T) {
	type ctxKey string
	key := ctxKey("test-key")
	ctx := context.WithValue(context.Background(), key, "test-value")

	var captured any
	h := &mockHandler{
		handler: func(w http.ResponseWriter, r *http.Request) {
			captured = r.Context().Value(key)
		},
	}

	if _, err := NewTestRequest(http.MethodGet, "/").WithContext(ctx).Execute(h); err != nil {
		t.Fatal(err)
	}
	if captured != "test-value" {
		t.Error("context value was not preserved")
	}
}

func TestTestRequestBuilder_WithFormValues(t *testing.T) {
	var got map[string]string
	h := &mockHandler{
		handler: func(w http.ResponseWriter, r *http.Request) {
			got = map[string]string{
				FieldExecute: r.FormValue(FieldExecute),
				FieldRender:  r.FormValue(FieldRender),
			}
		},
	}

	_, err := NewTestRequest(http.MethodPost, "/").
		WithFormValues(map[string]string{FieldExecute: "@this", FieldRender: "form:panel1"}).
		Execute(h)
	if err != nil {
		t.Fatal(err)
	}
	if got[FieldExecute] != "@this" || got[FieldRender] != "form:panel1" {
		t.Errorf("form = %v", got)
	}
}

func TestTestResult_HTMLContains(t *testing.T) {
	result := &TestResult{HTML: `<div class="container"><span>Hello World</span></div>`}

	tests := []struct {
		substr string
		want   bool
	}{
		{"Hello World", true},
		{"container", true},
		{"<span>", true},
		{"Missing", false},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.substr, func(t *testing.T) {
			if got := result.HTMLContains(tt.substr); got != tt.want {
				t.Errorf("HTMLContains(%q) = %v, want %v", tt.substr, got, tt.want)
			}
		})
	}

	if !result.HTMLContainsAll("Hello", "World", "container") {
		t.Error("expected HTMLContainsAll to return true for all present substrings")
	}
	if result.HTMLContainsAll("Hello", "Missing") {
		t.Error("expected HTMLContainsAll to return false when any substring is missing")
	}
}

func TestParseRegisterCalls(t *testing.T) {
	html := `<span id="a"><script>
hxbus.register('g1','saved','a','@this','b c');
hxbus.register('global','x','a','@this','@none');
</script></span>
<script>other.register('g','e','o','x','y');</script>`

	calls := ParseRegisterCalls(html)
	if len(calls) != 2 {
		t.Fatalf("ParseRegisterCalls() = %v", calls)
	}
	if calls[0] != (RegisterCall{Group: "g1", Event: "saved", Observer: "a", Execute: "@this", Render: "b c"}) {
		t.Errorf("calls[0] = %+v", calls[0])
	}
	if calls[1].Group != "global" || calls[1].Event != "x" {
		t.Errorf("calls[1] = %+v", calls[1])
	}

	if got := ParseRegisterCalls("<div></div>"); len(got) != 0 {
		t.Errorf("ParseRegisterCalls() = %v, want none", got)
	}
}

func TestParseDispatchHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		expect int
	}{
		{"empty", "", 0},
		{"plain event list", "item-saved, list-updated", 0},
		{"other json events", `{"showMessage":"hi"}`, 0},
		{"dispatches", `{"hxbus:dispatch":[{"group":"a","events":"x"},{"group":"b","events":"y z"}],"other":1}`, 2},
		{"malformed", `{"hxbus:dispatch":`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseDispatchHeader(tt.header); len(got) != tt.expect {
				t.Errorf("parseDispatchHeader() = %v, want %d dispatches", got, tt.expect)
			}
		})
	}
}
