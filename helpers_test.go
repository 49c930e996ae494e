package hxbus

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/a-h/templ"
)

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestIsHTMX(t *testing.T) {
	tests := []struct {
		name   string
		header string
		expect bool
	}{
		{"with HX-Request true", "true", true},
		{"with HX-Request false", "false", false},
		{"without header", "", false},
		{"with other value", "yes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("HX-Request", tt.header)
			}

			result := IsHTMX(req)
			if result != tt.expect {
				t.Errorf("IsHTMX() = %v, want %v", result, tt.expect)
			}
		})
	}
}

func TestSourceID(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		trigger string
		expect  string
	}{
		{"form field", "form:obs1", "", "form:obs1"},
		{"field wins over header", "form:obs1", "btn", "form:obs1"},
		{"header fallback", "", "form:obs2", "form:obs2"},
		{"absent", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			if tt.field != "" {
				values.Set(FieldSource, tt.field)
			}
			req := formRequest(values)
			if tt.trigger != "" {
				req.Header.Set("HX-Trigger", tt.trigger)
			}

			result := SourceID(req)
			if result != tt.expect {
				t.Errorf("SourceID() = %q, want %q", result, tt.expect)
			}
		})
	}
}

func TestTriggerID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		expect string
	}{
		{"with ID", "btn-123", "btn-123"},
		{"without header", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("HX-Trigger", tt.header)
			}

			result := TriggerID(req)
			if result != tt.expect {
				t.Errorf("TriggerID() = %q, want %q", result, tt.expect)
			}
		})
	}
}

func TestExecuteAndRenderSets(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		execute []string
		render  []string
	}{
		{
			name:    "defaults",
			values:  url.Values{},
			execute: []string{TokenThis},
			render:  []string{TokenNone},
		},
		{
			name: "explicit",
			values: url.Values{
				FieldExecute: {"form:btn1  @this"},
				FieldRender:  {"form:panel1 form:panel2"},
			},
			execute: []string{"form:btn1", TokenThis},
			render:  []string{"form:panel1", "form:panel2"},
		},
		{
			name:    "blank fields",
			values:  url.Values{FieldExecute: {"  "}, FieldRender: {""}},
			execute: []string{TokenThis},
			render:  []string{TokenNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := formRequest(tt.values)
			if got := ExecuteSet(req); !reflect.DeepEqual(got, tt.execute) {
				t.Errorf("ExecuteSet() = %v, want %v", got, tt.execute)
			}
			if got := RenderSet(req); !reflect.DeepEqual(got, tt.render) {
				t.Errorf("RenderSet() = %v, want %v", got, tt.render)
			}
		})
	}
}

func TestRenderHelper(t *testing.T) {
	component := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<p>hi</p>")
		return err
	})

	rec := httptest.NewRecorder()
	if err := Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), component); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "<p>hi</p>" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestBuildDispatchHeader(t *testing.T) {
	tests := []struct {
		name   string
		ds     []Dispatch
		expect string
	}{
		{
			name:   "empty",
			expect: "",
		},
		{
			name:   "single",
			ds:     []Dispatch{{Group: "orders", Events: "saved"}},
			expect: `{"hxbus:dispatch":[{"group":"orders","events":"saved"}]}`,
		},
		{
			name: "several",
			ds: []Dispatch{
				{Group: "orders", Events: "saved deleted"},
				{Group: "global", Events: "refreshed"},
			},
			expect: `{"hxbus:dispatch":[{"group":"orders","events":"saved deleted"},{"group":"global","events":"refreshed"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BuildDispatchHeader(tt.ds...)
			if result != tt.expect {
				t.Errorf("BuildDispatchHeader() = %q, want %q", result, tt.expect)
			}
			if tt.expect == "" {
				return
			}
			if back := parseDispatchHeader(result); !reflect.DeepEqual(back, tt.ds) {
				t.Errorf("parseDispatchHeader() = %v, want %v", back, tt.ds)
			}
		})
	}
}

func TestWriteOpenTag(t *testing.T) {
	var buf bytes.Buffer
	err := writeOpenTag(&buf, "div", `a"b`, templ.Attributes{
		"id":       "ignored",
		"class":    "x<y",
		"disabled": true,
		"hidden":   false,
		"tabindex": 3,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := `<div id="a&#34;b" class="x&lt;y" disabled tabindex="3">`
	if buf.String() != want {
		t.Errorf("writeOpenTag() = %q, want %q", buf.String(), want)
	}
}
