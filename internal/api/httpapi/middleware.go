package httpapi

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/BearBump/GTLTrack/internal/services/auth"
	"github.com/pkg/errors"
)

const SessionCookie = "gtl_admin_session"

// rateLimit caps requests per client IP per minute. Limiter errors let the request through.
func (s *Server) rateLimit(bucket string, limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.d.Limiter == nil || limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := s.d.Limiter.AllowPerMinute(r.Context(), bucket, clientIP(r), limit)
			if err != nil {
				slog.Warn("rate limiter unavailable", "bucket", bucket, "error", err.Error())
			} else if !ok {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.d.Auth.Lookup(r.Context(), sessionToken(r))
		if errors.Is(err, auth.ErrNoSession) {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		if !sess.IsAdmin {
			writeError(w, http.StatusForbidden, "admin only")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}

// sessionToken prefers the bearer header over the cookie.
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
