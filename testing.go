package hxbus

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
)

// TestResult holds the result of rendering or round-tripping for tests.
//
// Provides convenience methods for asserting on HTML content, emitted
// register calls and server dispatches.
type TestResult struct {
	HTML          string
	StatusCode    int
	Headers       http.Header
	RegisterCalls []RegisterCall
	Dispatches    []Dispatch
}

// RegisterCall is a parsed client registration call.
type RegisterCall struct {
	Group    string
	Event    string
	Observer string
	Execute  string
	Render   string
}

// TestRenderObserver runs one render pass of an observer and returns its
// markup.
//
// The observer must be bound to a node. Declarations are evaluated with
// eval (Literal when nil):
//
//	result, err := hxbus.TestRenderObserver(ctx, obs, nil)
//	if len(result.RegisterCalls) != 1 {
//	    t.Fatal("expected one registration")
//	}
func TestRenderObserver(ctx context.Context, o *Observer, eval Evaluator) (*TestResult, error) {
	ctx = WithPhase(ctx, PhaseRenderResponse)
	o.BeginPass()
	if err := o.Apply(ctx, eval); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := o.Component().Render(ctx, &buf); err != nil {
		return nil, err
	}

	return &TestResult{
		HTML:          buf.String(),
		StatusCode:    http.StatusOK,
		Headers:       make(http.Header),
		RegisterCalls: ParseRegisterCalls(buf.String()),
	}, nil
}

// TestRenderPage renders a full page.
func TestRenderPage(ctx context.Context, p *Page, eval Evaluator) (*TestResult, error) {
	var buf bytes.Buffer
	if err := p.Render(ctx, &buf, eval); err != nil {
		return nil, err
	}
	return &TestResult{
		HTML:          buf.String(),
		StatusCode:    http.StatusOK,
		Headers:       make(http.Header),
		RegisterCalls: ParseRegisterCalls(buf.String()),
	}, nil
}

// TestRoundTrip simulates the request the client runtime issues when an
// observer is notified.
//
//	result, err := hxbus.TestRoundTrip(page, "form:obs1", map[string]string{
//	    hxbus.FieldRender: "form:panel1",
//	})
func TestRoundTrip(p *Page, source string, fields map[string]string) (*TestResult, error) {
	b := NewTestRequest(http.MethodPost, "/").WithFormValues(fields)
	if source != "" {
		b.WithFormData(FieldSource, source)
	}
	return b.Execute(p)
}

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.HTML, s) {
			return false
		}
	}
	return true
}

// HasDispatch checks if the response asks the client to dispatch event
// in group.
func (r *TestResult) HasDispatch(group, event string) bool {
	for _, d := range r.Dispatches {
		if d.Group != group {
			continue
		}
		for _, e := range strings.Fields(d.Events) {
			if e == event {
				return true
			}
		}
	}
	return false
}

// IsOK checks if the status code is 200.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}

var registerCallPattern = regexp.MustCompile(
	regexp.QuoteMeta(RuntimeNamespace) + `\.register\('([^']*)','([^']*)','([^']*)','([^']*)','([^']*)'\);`)

// ParseRegisterCalls extracts the register calls from rendered markup,
// in document order.
func ParseRegisterCalls(html string) []RegisterCall {
	var calls []RegisterCall
	for _, m := range registerCallPattern.FindAllStringSubmatch(html, -1) {
		calls = append(calls, RegisterCall{
			Group:    m[1],
			Event:    m[2],
			Observer: m[3],
			Execute:  m[4],
			Render:   m[5],
		})
	}
	return calls
}

// parseDispatchHeader parses an HX-Trigger header built by
// BuildDispatchHeader. Other events in the header are ignored.
func parseDispatchHeader(header string) []Dispatch {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, "{") {
		return nil
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(header), &payload); err != nil {
		return nil
	}
	raw, ok := payload[DispatchEventName]
	if !ok {
		return nil
	}
	var ds []Dispatch
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil
	}
	return ds
}

// TestRequestBuilder provides a fluent interface for building test requests.
//
//	result, err := hxbus.NewTestRequest("POST", "/").
//	    WithFormData(hxbus.FieldSource, "form:obs1").
//	    WithHeader("X-Custom", "header").
//	    Execute(page)
type TestRequestBuilder struct {
	method   string
	url      string
	formData map[string]string
	headers  map[string]string
	ctx      context.Context
	noHTMX   bool
}

// NewTestRequest creates a new test request builder.
func NewTestRequest(method, url string) *TestRequestBuilder {
	return &TestRequestBuilder{
		method:   method,
		url:      url,
		formData: make(map[string]string),
		headers:  make(map[string]string),
		ctx:      context.Background(),
	}
}

// WithFormData adds form data to the request.
func (b *TestRequestBuilder) WithFormData(key, value string) *TestRequestBuilder {
	b.formData[key] = value
	return b
}

// WithFormValues adds multiple form values to the request.
func (b *TestRequestBuilder) WithFormValues(data map[string]string) *TestRequestBuilder {
	for k, v := range data {
		b.formData[k] = v
	}
	return b
}

// WithHeader adds a header to the request.
func (b *TestRequestBuilder) WithHeader(key, value string) *TestRequestBuilder {
	b.headers[key] = value
	return b
}

// WithContext sets the context for the request.
func (b *TestRequestBuilder) WithContext(ctx context.Context) *TestRequestBuilder {
	b.ctx = ctx
	return b
}

// WithoutHTMX omits the HX-Request header, as a cross-origin form post would.
func (b *TestRequestBuilder) WithoutHTMX() *TestRequestBuilder {
	b.noHTMX = true
	return b
}

// Execute executes the request against a handler, typically a *Page.
func (b *TestRequestBuilder) Execute(h http.Handler) (*TestResult, error) {
	form := url.Values{}
	for k, v := range b.formData {
		form.Set(k, v)
	}

	req := httptest.NewRequest(b.method, b.url, strings.NewReader(form.Encode()))
	req = req.WithContext(b.ctx)

	if !b.noHTMX {
		req.Header.Set("HX-Request", "true")
	}
	if len(b.formData) > 0 {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	result := &TestResult{
		HTML:          rec.Body.String(),
		StatusCode:    rec.Code,
		Headers:       rec.Header(),
		RegisterCalls: ParseRegisterCalls(rec.Body.String()),
	}
	if trigger := rec.Header().Get("HX-Trigger"); trigger != "" {
		result.Dispatches = parseDispatchHeader(trigger)
	}
	return result, nil
}
