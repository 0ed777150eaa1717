package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chirper/internal/logger"
)

// RequestLogger logs every request with structured fields. Level tracks
// the outcome: 5xx error, 4xx warn, everything else info.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Int("response_size", ww.BytesWritten()),
			zap.Duration("latency", time.Since(start)),
		}
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			fields = append(fields, zap.String("request_id", reqID))
		}

		switch {
		case ww.Status() >= 500:
			logger.Log.Error("HTTP request", fields...)
		case ww.Status() >= 400:
			logger.Log.Warn("HTTP request", fields...)
		default:
			logger.Log.Info("HTTP request", fields...)
		}
	})
}
