// Package middleware provides HTTP middleware for the debug API server.
package middleware

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing returns a middleware that wraps handlers with OpenTelemetry HTTP
// spans. When disabled it leaves the handler chain untouched.
func Tracing(enabled bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return otelhttp.NewHandler(next, "agentmon",
			otelhttp.WithMessageEvents(otelhttp.ReadEvents, otelhttp.WriteEvents),
		)
	}
}
