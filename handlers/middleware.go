package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/veralens/veralensbackend/diagnostics"
)

// CallLogger records every handled API request into the bounded diagnostics
// call log. Best-effort history only; it never blocks or fails a request.
func CallLogger(callLog *diagnostics.CallLog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			callLog.Record(diagnostics.CallEntry{
				Time:       start,
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: ww.Status(),
				DurationMS: time.Since(start).Milliseconds(),
			})
		})
	}
}
