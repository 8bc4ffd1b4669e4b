// Package mid is the middleware stack for the search API: request
// observation (access log plus metrics), panic recovery, CORS, tracing and
// per-client rate limiting. Handlers compose the stack with Chain.
package mid

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jhellingsdata/search-app/pkg/metrics"
)

// Middleware wraps an http.Handler with one cross-cutting concern.
type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware listed sees the request first.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// recorder captures what the handler wrote, for the access log and the
// request metrics. A handler that never calls WriteHeader implies 200.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *recorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += n
	return n, err
}

// Observe emits one access-log line per request and feeds the shared metrics
// registry: http_requests_total labelled by method and status, plus the
// http_request_duration_seconds histogram. Handlers record only their own
// domain counters on top of this. A nil registry disables the metrics half.
func Observe(log *slog.Logger, reg *metrics.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			elapsed := time.Since(start)
			log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"remote", r.RemoteAddr,
				"duration", elapsed,
			)
			if reg == nil {
				return
			}
			name := metrics.WithLabels("http_requests_total",
				"method", r.Method, "status", strconv.Itoa(rec.status))
			reg.Counter(name, "HTTP requests served.").Inc()
			reg.Histogram("http_request_duration_seconds", "Request latency.", nil).
				Observe(elapsed.Seconds())
		})
	}
}

// Recover converts handler panics into 500 responses so one bad request
// cannot take the server down. http.ErrAbortHandler is re-raised for the
// server to handle as usual.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error("panic in handler", "path", r.URL.Path, "panic", fmt.Sprintf("%v", v))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORS allows browser clients on origin to call the API. The API only serves
// GET and POST, so the preflight response advertises just those.
func CORS(origin string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type")
				h.Set("Access-Control-Max-Age", "300")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Trace wraps requests in OpenTelemetry server spans named after method and
// path instead of the operation default.
func Trace(service string) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	}
}
