package hxbusecho

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"
	"github.com/pthm/hxbus"
	"github.com/pthm/hxbus/lib/runtime"
)

func buildOrders() (*hxbus.Element, error) {
	orders := hxbus.NewElement(hxbus.KindObserver, "orders")
	orders.Observer = hxbus.NewObserver("g1").On(hxbus.OnEvent{Event: "saved", Render: hxbus.Ref("panel1")})
	return hxbus.NewElement(hxbus.KindPage, "page",
		hxbus.NewElement(hxbus.KindForm, "form",
			orders,
			hxbus.NewElement(hxbus.KindPanel, "panel1"),
		),
	), nil
}

func TestMount(t *testing.T) {
	e := echo.New()
	Mount(e, "/orders", buildOrders, WithKey(make([]byte, 32)))

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "hxbus.register('g1','saved','form:orders','@this','form:panel1');") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMountGroup(t *testing.T) {
	e := echo.New()
	g := e.Group("/app")
	MountGroup(g, "/orders", buildOrders, WithSensitiveState())

	req := httptest.NewRequest(http.MethodGet, "/app/orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestRoundTrip(t *testing.T) {
	e := echo.New()
	Mount(e, "/orders", buildOrders)

	form := url.Values{hxbus.FieldSource: {"form:orders"}, hxbus.FieldRender: {"form:panel1"}}
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `<div id="form:panel1" hx-swap-oob="true"></div>`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestCSRFProtection(t *testing.T) {
	e := echo.New()
	Mount(e, "/orders", buildOrders)

	// POST without HX-Request header should be forbidden
	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for POST without HX-Request, got %d", rec.Code)
	}
}

func TestBuildError(t *testing.T) {
	e := echo.New()
	Mount(e, "/broken", func() (*hxbus.Element, error) {
		return nil, errors.New("no such page")
	})

	req := httptest.NewRequest(http.MethodGet, "/broken", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMountRuntime(t *testing.T) {
	e := echo.New()
	MountRuntime(e)

	req := httptest.NewRequest(http.MethodGet, runtime.Path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "register") {
		t.Error("runtime source not served")
	}
}

func TestRender(t *testing.T) {
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		return Render(c, templ.Raw("<p>hi</p>"))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Body.String() != "<p>hi</p>" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
}
