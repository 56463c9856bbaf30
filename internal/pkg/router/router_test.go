package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type queued struct {
	Count int `json:"count"`
}

func (queued) Message() string { return "queued" }

func newTestRouter(t *testing.T, probes map[string]Probe) *Router {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(`
app:
  maintenance:
    endpoints: "/closed"
instrument:
  log_mask_fields: "email"
`))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	r := NewRouter(Config{Config: cfg, UUID: fixedID("cid-1"), Instrument: instrument.NewNoop(), Probes: probes})
	r.POST("/ok", func(req *Request) (any, error) {
		var body struct {
			Email string `json:"email"`
		}
		if err := req.DecodeBody(&body); err != nil {
			return nil, err
		}
		return queued{Count: 1}, nil
	})
	r.GET("/items/:id", func(req *Request) (any, error) {
		if _, err := req.GetParamInt64("id"); err != nil {
			return nil, err
		}
		return nil, goerror.NewInvalidInput(nil, "user_id", "user_id is required")
	})
	r.GET("/panic", func(*Request) (any, error) { panic("boom") })
	r.GET("/closed", func(*Request) (any, error) { return queued{}, nil })
	return r
}

func serve(t *testing.T, h http.Handler, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("response is not json: %q", rec.Body.String())
		}
	}
	return rec, out
}

func TestRouter(t *testing.T) {
	r := newTestRouter(t, nil)

	t.Run("success envelope", func(t *testing.T) {
		rec, out := serve(t, r, http.MethodPost, "/ok", `{"email":"a@b.com"}`)

		if rec.Code != http.StatusOK || out["message"] != "queued" {
			t.Fatalf("got %d %v", rec.Code, out)
		}
		if data, _ := out["data"].(map[string]any); data["count"] != float64(1) {
			t.Fatalf("data = %v", out["data"])
		}
	})

	t.Run("unknown fields are a bad request", func(t *testing.T) {
		rec, _ := serve(t, r, http.MethodPost, "/ok", `{"email":"a@b.com","x":1}`)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("validation envelope carries fields", func(t *testing.T) {
		rec, out := serve(t, r, http.MethodGet, "/items/7", "")

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("status = %d", rec.Code)
		}
		if fields, _ := out["error"].(map[string]any); fields["user_id"] == nil {
			t.Fatalf("error = %v", out["error"])
		}
	})

	t.Run("non numeric id", func(t *testing.T) {
		rec, _ := serve(t, r, http.MethodGet, "/items/abc", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("panic becomes 500", func(t *testing.T) {
		rec, out := serve(t, r, http.MethodGet, "/panic", "")

		if rec.Code != http.StatusInternalServerError || out["message"] != "Internal server error" {
			t.Fatalf("got %d %v", rec.Code, out)
		}
	})

	t.Run("maintenance route", func(t *testing.T) {
		rec, _ := serve(t, r, http.MethodGet, "/closed", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("correlation id is echoed or minted", func(t *testing.T) {
		rec, _ := serve(t, r, http.MethodPost, "/ok", `{}`, HeaderCorrelationID, "abc")
		if got := rec.Header().Get(HeaderCorrelationID); got != "abc" {
			t.Fatalf("echoed cid = %q", got)
		}

		rec, _ = serve(t, r, http.MethodPost, "/ok", `{}`)
		if got := rec.Header().Get(HeaderCorrelationID); got != "cid-1" {
			t.Fatalf("minted cid = %q", got)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		rec, _ := serve(t, r, http.MethodGet, "/nope", "")

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

func TestRouter_Health(t *testing.T) {
	t.Run("all probes up", func(t *testing.T) {
		r := newTestRouter(t, map[string]Probe{"database": func(context.Context) error { return nil }})

		rec, out := serve(t, r, http.MethodGet, "/health", "")

		if rec.Code != http.StatusOK || out["status"] != "ok" {
			t.Fatalf("got %d %v", rec.Code, out)
		}
	})

	t.Run("failing probe is 503", func(t *testing.T) {
		r := newTestRouter(t, map[string]Probe{
			"database": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return errors.New("connection refused") },
		})

		rec, out := serve(t, r, http.MethodGet, "/health", "")

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d", rec.Code)
		}
		checks, _ := out["error"].(map[string]any)
		if checks["redis"] != "down" || checks["database"] != "up" {
			t.Fatalf("checks = %v", out["error"])
		}
	})
}

func TestMasker(t *testing.T) {
	m := masker{"email": true, "phone_number": true}

	got := m.body([]byte(`{"emails":["a@b.com"],"email":"a@b.com","nested":{"phone_number":"+1"}}`))

	out, _ := got.(map[string]any)
	if out["email"] != masked {
		t.Fatalf("email not masked: %v", out)
	}
	if nested, _ := out["nested"].(map[string]any); nested["phone_number"] != masked {
		t.Fatalf("nested not masked: %v", out)
	}
}
