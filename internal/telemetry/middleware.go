package telemetry

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"inventory-console/internal/middleware"
)

// Middleware records request metrics for every routed request
func (t *ConsoleTelemetry) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		clientIP := middleware.ClientIP(r)
		m := RequestMetrics{
			Method:       r.Method,
			Endpoint:     endpointTemplate(r),
			StatusCode:   wrapper.statusCode,
			Duration:     time.Since(start),
			ClientIP:     clientIP,
			ClientIPType: NormalizeClientIP(clientIP),
		}
		if wrapper.statusCode >= 400 {
			m.ErrorMessage = http.StatusText(wrapper.statusCode)
		}
		t.RegisterRequest(r.Context(), m)
	})
}

// endpointTemplate returns the mux route template, e.g. /v1/items/{id}
func endpointTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush keeps long-poll responses streaming through the wrapper
func (w *responseWriterWrapper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
