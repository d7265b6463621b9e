package httpx

import (
	"log/slog"
	"net/http"
	"time"
)

type recordingWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *recordingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *recordingWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// WithAccessLog writes one record per request. 5xx responses log at error, 4xx at warn.
// X-Professional-Id is read after the handler ran, so auth middleware further in has set it.
func WithAccessLog(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()
			rw := &recordingWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r)

			status := rw.status
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			attrs := []any{
				"request_id", RequestIDFromContext(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", rw.written,
				"duration_ms", time.Since(began).Milliseconds(),
			}
			if pro := r.Header.Get("X-Professional-Id"); pro != "" {
				attrs = append(attrs, "professional_id", pro)
			}
			logger.Log(r.Context(), level, "http request", attrs...)
		})
	}
}
