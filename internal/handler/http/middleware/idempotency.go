package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	idempotencyLockTTL        = 30 * time.Second
	anonymousIdempotencyScope = "anonymous"
)

type idempotentResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// responseRecorder tees the handler's output so it can be cached.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func idempotencyCacheKey(path, staffID, key string) string {
	return fmt.Sprintf("idemp:%s:%s:%s", path, staffID, key)
}

// Idempotency replays the stored response of a POST carrying an Idempotency-Key
// header. A second request arriving while the first is still running gets 409.
// Redis failures let the request through.
func Idempotency(rdb redis.Cmdable, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			idempKey := r.Header.Get(IdempotencyKeyHeader)
			if idempKey == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			scope := anonymousIdempotencyScope
			if claims, err := jwt.ClaimsFromContext(r.Context()); err == nil {
				scope = claims.StaffID
			}
			ctx := r.Context()
			cacheKey := idempotencyCacheKey(r.URL.Path, scope, idempKey)
			lockKey := cacheKey + ":lock"

			val, err := rdb.Get(ctx, cacheKey).Result()
			switch {
			case err == nil:
				var cached idempotentResponse
				if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set(IdempotentReplayedHeader, "true")
					w.WriteHeader(cached.Status)
					_, _ = w.Write([]byte(cached.Body))
					return
				}
				slog.Warn("Discarding unreadable idempotency entry", "key", cacheKey)
			case !errors.Is(err, redis.Nil):
				slog.Warn("Idempotency cache unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
			if err != nil {
				slog.Warn("Idempotency lock unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				response.Error(w, http.StatusConflict, "REQUEST_IN_PROGRESS", "A request with this idempotency key is still being processed")
				return
			}

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Server errors are not cached so the client may retry with the same key.
			if rec.status != 0 && rec.status < http.StatusInternalServerError {
				payload, _ := json.Marshal(idempotentResponse{Status: rec.status, Body: rec.body.String()})
				if err := rdb.Set(ctx, cacheKey, string(payload), ttl).Err(); err != nil {
					slog.Warn("Failed to store idempotent response", "key", cacheKey, "error", err)
				}
			}
			if err := rdb.Del(ctx, lockKey).Err(); err != nil {
				slog.Warn("Failed to release idempotency lock", "key", lockKey, "error", err)
			}
		})
	}
}
