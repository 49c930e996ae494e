package hxbuschi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/hxbus"
	"github.com/pthm/hxbus/lib/push"
	"github.com/pthm/hxbus/lib/runtime"
)

func ordersPage() (*hxbus.Element, error) {
	obs := hxbus.NewObserver("g1").On(hxbus.OnEvent{
		Event:  "saved",
		Render: hxbus.Ref("panel1"),
	})
	btn := hxbus.NewElement(hxbus.KindButton, "btn1")
	btn.Producers = []hxbus.Producer{hxbus.NewProducer("click", "saved").InGroup("g1")}
	o := hxbus.NewElement(hxbus.KindObserver, "obs1")
	o.Observer = obs

	return hxbus.NewElement(hxbus.KindPage, "page",
		hxbus.NewElement(hxbus.KindForm, "form",
			btn,
			o,
			hxbus.NewElement(hxbus.KindPanel, "panel1"),
		),
	), nil
}

func TestMountServesPage(t *testing.T) {
	r := chi.NewRouter()
	m := New(WithKey(make([]byte, 32)))
	m.Mount(r, "/orders", ordersPage)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, 1, doc.Find(`span[id="form:obs1"] script`).Length())
	click, ok := doc.Find(`button[id="form:btn1"]`).Attr("hx-on:click")
	require.True(t, ok)
	assert.Equal(t, "hxbus.dispatch('g1','saved')", click)

	state, ok := doc.Find(`input[name="hxbus.state"]`).Attr("value")
	require.True(t, ok)
	assert.NotEmpty(t, state)
}

func TestMountRoundTrip(t *testing.T) {
	r := chi.NewRouter()
	m := New(WithoutState())
	m.Mount(r, "/orders", ordersPage)

	form := url.Values{
		hxbus.FieldSource: {"form:obs1"},
		hxbus.FieldRender: {"form:panel1"},
	}
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<div id="form:panel1" hx-swap-oob="true"></div>`)
	assert.NotContains(t, rec.Body.String(), "hxbus.state")
}

func TestMountRejectsPlainPost(t *testing.T) {
	r := chi.NewRouter()
	New().Mount(r, "/orders", ordersPage)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMountBuildError(t *testing.T) {
	r := chi.NewRouter()
	New().Mount(r, "/broken", func() (*hxbus.Element, error) {
		return hxbus.NewElement("widget", "w"), nil
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/broken", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMountRuntime(t *testing.T) {
	r := chi.NewRouter()
	b := push.NewMemory()
	defer b.Close()

	m := New(WithBroker(b))
	m.MountRuntime(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, runtime.Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runtime.Source(), rec.Body.Bytes())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := b.Subscribe(ctx, "g1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, PublishPath, strings.NewReader("group=g1&events=saved"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, push.Message{Group: "g1", Events: "saved"}, <-ch)
}

func TestMountRuntimeWithoutBroker(t *testing.T) {
	r := chi.NewRouter()
	New(WithRuntimePath("/static/bus.js")).MountRuntime(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/bus.js", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, PublishPath, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRender(t *testing.T) {
	rec := httptest.NewRecorder()
	Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), New().Script())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `<script src="/_hxbus/hxbus.js"></script>`, rec.Body.String())
}
