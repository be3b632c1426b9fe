package httpapi

import (
	"net/http"
	"time"

	"github.com/acproject/local-ai-runtime/internal/logging"
)

// withLogging logs one structured line per inbound request (spec
// §4.M), grounded on the same one-line-per-event convention used
// throughout internal/tools and internal/mcp.
func (s *Server) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		s.logger.Info(r.Context(), "http request",
			logging.F("method", r.Method),
			logging.F("path", r.URL.Path),
			logging.F("status", rec.status),
			logging.F("ms", time.Since(start).Milliseconds()),
		)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
