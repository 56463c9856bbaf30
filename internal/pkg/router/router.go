package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/uid"
	"github.com/shandysiswandi/gonotify/internal/pkg/validator"
)

const probeTimeout = 2 * time.Second

type errorResponse struct {
	Message string            `json:"message" example:"Validation error"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message" example:"request has been successfully"`
	Data    any            `json:"data" swaggertype:"object"`
	Meta    map[string]any `json:"meta,omitempty" swaggertype:"object"`
}

// Handler returns a payload for the success envelope or an error for the
// error envelope. A payload may implement StatusCode, Message or Meta.
type Handler func(r *Request) (any, error)

// Probe reports whether a dependency is reachable. Probes back /health.
type Probe func(ctx context.Context) error

type Config struct {
	Config     config.Config
	UUID       uid.StringID
	Instrument instrument.Instrumentation
	// Probes are run by /health, keyed by dependency name.
	Probes map[string]Probe
}

// Router wraps httprouter with the JSON envelope and the middleware chain.
type Router struct {
	hr     *httprouter.Router
	mws    []Middleware
	probes map[string]Probe
}

func NewRouter(cfg Config) *Router {
	r := &Router{probes: cfg.Probes}
	r.hr = &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "endpoint not found"}, http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "method not allowed"}, http.StatusMethodNotAllowed)
		}),
	}
	r.mws = []Middleware{
		middlewareRecoverer,
		middlewareIP,
		middlewareCorrelationID(cfg.UUID),
		middlewareObservability(cfg.Config, cfg.Instrument),
		middlewareMaintenance(cfg.Config),
	}

	r.hr.GET("/health", r.health)

	return r
}

func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

func (r *Router) PUT(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPut, path, h, mws...)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	final := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		resp, err := h(&Request{Request: req})
		if err != nil {
			if rec, ok := w.(*statusRecorder); ok {
				rec.err = err
			}
			writeError(w, err)
			return
		}
		writeSuccess(w, resp)
	})

	r.hr.Handler(method, path, Chain(final, append(r.mws, mws...)...))
}

// health answers 200 with every probe's result, or 503 when one fails.
func (r *Router) health(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(req.Context(), probeTimeout)
	defer cancel()

	checks := make(map[string]string, len(r.probes))
	var failed error
	for name, probe := range r.probes {
		if err := probe(ctx); err != nil {
			slog.WarnContext(ctx, "health probe failed", "dependency", name, "error", err)
			checks[name] = "down"
			failed = errors.Join(failed, err)
			continue
		}
		checks[name] = "up"
	}

	if failed != nil {
		err := goerror.WithFields(goerror.NewUnavailable(failed), checks)
		writeError(w, err)
		return
	}

	writeJSON(w, map[string]any{"status": "ok", "checks": checks}, http.StatusOK)
}

func writeError(w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	resp := errorResponse{Message: gerr.Msg(), Error: gerr.Fields()}
	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Values()
	}

	writeJSON(w, resp, gerr.StatusCode())
}

func writeSuccess(w http.ResponseWriter, resp any) {
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	code := http.StatusOK
	if sc, ok := resp.(interface{ StatusCode() int }); ok {
		code = sc.StatusCode()
	}
	if code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}

	body := successResponse{Message: "request has been successfully", Data: resp}
	if m, ok := resp.(interface{ Message() string }); ok {
		body.Message = m.Message()
	}
	if m, ok := resp.(interface{ Meta() map[string]any }); ok {
		body.Meta = m.Meta()
	}

	writeJSON(w, body, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
