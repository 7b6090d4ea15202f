package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/snapreel/backend/internal/metrics"
)

// Instrument records request count and latency under a fixed route label.
func Instrument(m *metrics.Metrics, route string, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := wrap(w)
		next.ServeHTTP(wrapped, r)

		m.RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).Inc()
		m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
