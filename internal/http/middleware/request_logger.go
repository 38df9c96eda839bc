package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/insurelab/termlife-ai-platform/pkg/logging"
)

// RequestLogger emits structured logs for every HTTP request. When the client
// sends X-Session-Id, the session rides along in both log lines so a turn can
// be correlated with its conversation.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			fields := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", reqID,
				"remote_ip", r.RemoteAddr,
			}
			if sid := r.Header.Get("X-Session-Id"); sid != "" {
				fields = append(fields, "session_id", sid)
			}
			logger.Info("request started", fields...)
			next.ServeHTTP(w, r)
			logger.Info("request completed",
				append(fields, "duration_ms", time.Since(start).Milliseconds())...)
		})
	}
}
