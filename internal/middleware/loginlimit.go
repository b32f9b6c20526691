package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/rabbitask/rabbitask-server-go/internal/audit"
	"github.com/rabbitask/rabbitask-server-go/internal/config"
	apperrors "github.com/rabbitask/rabbitask-server-go/internal/errors"
	"github.com/rabbitask/rabbitask-server-go/internal/httputil"
	"github.com/rabbitask/rabbitask-server-go/internal/service"
)

// LoginRateLimitMiddleware throttles credential-guessing by limiting
// login attempts per client IP. It sits in front of the login handler
// only; authenticated traffic is not affected.
type LoginRateLimitMiddleware struct {
	limiter *service.RateLimiter
}

func NewLoginRateLimitMiddleware(limiter *service.RateLimiter) *LoginRateLimitMiddleware {
	return &LoginRateLimitMiddleware{limiter: limiter}
}

func (m *LoginRateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			ip = realIP
		}

		allowed, _ := m.limiter.CheckLimit(r.Context(), "login:"+ip, config.LoginAttemptLimit, config.LoginAttemptWindow)
		if !allowed {
			log.Warn().Str("ip", ip).Msg("login rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{Type: audit.EventRateLimitExceed})
			httputil.WriteError(w, apperrors.RateLimitExceeded())
			return
		}

		next.ServeHTTP(w, r)
	})
}
