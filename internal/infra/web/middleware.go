package web

import (
	"crypto/rand"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"garment-studio/internal/infra/logging"
	infraredis "garment-studio/internal/infra/redis"
)

// traceID tags every request with a sortable ID and threads it through
// the context so use case and adapter logs correlate.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
		w.Header().Set("X-Trace-Id", id)
		next.ServeHTTP(w, r.WithContext(logging.WithTraceID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func requestLogger(base *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(rec, r)
			logging.With(r.Context(), base).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// rateLimit caps an operation per authenticated user. Limiter failures
// fail open; dropping generation requests because redis blinked would
// hurt more than a brief overage.
func rateLimit(limiter *infraredis.RateLimiter, operation string, limit int, window time.Duration, log *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID := userFromContext(r.Context())
			ok, err := limiter.Allow(r.Context(), infraredis.UserOperationKey(userID, operation), limit, window)
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
