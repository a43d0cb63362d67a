package middleware

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/loqui/chat-server-go/internal/audit"
	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/httputil"
	"github.com/loqui/chat-server-go/internal/ratelimit"
)

// RateLimitMiddleware budgets each authenticated user per operation; the
// operation name comes from the route, so posting and listing draw from
// separate windows. Unauthenticated routes are keyed by remote address.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

func (m *RateLimitMiddleware) Handler(operation string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientID(r)

			d, err := m.limiter.Allow(r.Context(), client, operation)
			if err != nil {
				log.Error().Err(err).Str("operation", operation).Msg("rate limit check failed")
				httputil.WriteError(w, apperrors.Internal("Rate limit check failed"))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventRateLimitExceed,
					Details: map[string]interface{}{"client": client, "operation": operation},
				})
				retryAfter := int(d.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteError(w, apperrors.RateLimitExceeded())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientID(r *http.Request) string {
	if user := GetUser(r.Context()); user != nil {
		return user.ID.String()
	}
	return r.RemoteAddr
}
