package api

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// WithRequestID wraps h so every request carries a correlation ID: the
// incoming X-Request-Id header is honored if present, otherwise a fresh
// UUID is generated. The ID is echoed back on the response and logged.
func WithRequestID(h http.Handler, logger *zap.SugaredLogger) http.Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		logger.Debugw("http request", "request_id", reqID, "method", r.Method, "path", r.URL.Path)
		h.ServeHTTP(w, r)
	})
}
