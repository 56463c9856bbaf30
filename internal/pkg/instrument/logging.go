package instrument

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const maskedValue = "***"

// SetupLogging installs a JSON slog logger on stdout, fanned out to the OTel
// log provider when lp is not nil. Every record carries the service name and
// the correlation id of its context; masked keys are replaced at any depth.
func SetupLogging(cfg Config, lp *sdklog.LoggerProvider) {
	slog.SetDefault(slog.New(newHandler(os.Stdout, cfg, lp)))
}

func newHandler(w io.Writer, cfg Config, lp *sdklog.LoggerProvider) slog.Handler {
	mask := map[string]bool{}
	for _, f := range cfg.MaskFields {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			mask[f] = true
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	var h slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.LevelKey:
				a.Key = "severity"
			case slog.SourceKey:
				return sourceAttr(a)
			}
			return a
		},
	})
	if lp != nil {
		h = fanout{h, otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp))}
	}

	return &contextHandler{Handler: h, service: cfg.ServiceName, mask: mask}
}

// sourceAttr shortens the caller to its path under internal/ and drops frames
// from outside the module.
func sourceAttr(a slog.Attr) slog.Attr {
	src, ok := a.Value.Any().(*slog.Source)
	if !ok {
		return a
	}
	_, rel, found := strings.Cut(src.File, "/internal/")
	if !found {
		return slog.Attr{}
	}
	return slog.String("file", "internal/"+rel+":"+strconv.Itoa(src.Line))
}

type contextHandler struct {
	slog.Handler
	service string
	mask    map[string]bool
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redact(a))
		return true
	})
	if cID := GetCorrelationID(ctx); cID != "" {
		out.AddAttrs(slog.String("_cID", cID))
	}
	out.AddAttrs(slog.String("service", h.service))

	return h.Handler.Handle(ctx, out)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = h.redact(a)
	}
	return &contextHandler{Handler: h.Handler.WithAttrs(redacted), service: h.service, mask: h.mask}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), service: h.service, mask: h.mask}
}

func (h *contextHandler) redact(a slog.Attr) slog.Attr {
	if h.mask[strings.ToLower(a.Key)] {
		return slog.String(a.Key, maskedValue)
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = h.redact(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case map[string]any:
			return slog.Any(a.Key, h.redactMap(v))
		case map[string]string:
			m := make(map[string]any, len(v))
			for k, s := range v {
				m[k] = s
			}
			return slog.Any(a.Key, h.redactMap(m))
		}
	}
	return a
}

func (h *contextHandler) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case h.mask[strings.ToLower(k)]:
			out[k] = maskedValue
		case isMap(v):
			out[k] = h.redactMap(v.(map[string]any))
		default:
			out[k] = v
		}
	}
	return out
}

func isMap(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
