package auth

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// AuditLogger records every authenticated api call as one json line, keyed by
// the farmer's phone number since that is how accounts are identified.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

// remoteAddr prefers the first hop of X-Forwarded-For when running behind a
// proxy.
func remoteAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}

// routeParams collects the chi url params of the matched route, e.g.
// product_id for /api/products/{product_id}.
func routeParams(rctx *chi.Context) []any {
	params := make([]any, 0, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if key == "*" {
			continue
		}
		params = append(params, slog.String(key, rctx.URLParams.Values[i]))
	}
	return params
}

// Middleware logs after the handler returns so the full route pattern and the
// response status are known.
func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		attrs := []any{
			"user_id", user.Id,
			"phone", user.Phone,
			"user_type", user.UserType,
			"method", r.Method,
			"url", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", remoteAddr(r),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			attrs = append(attrs, "route", rctx.RoutePattern(), slog.Group("params", routeParams(rctx)...))
		}
		if r.URL.RawQuery != "" {
			attrs = append(attrs, "query", r.URL.RawQuery)
		}

		log.logger.Info("api call", attrs...)
	})
}
