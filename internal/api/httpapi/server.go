package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/GTLTrack/internal/models"
	"github.com/BearBump/GTLTrack/internal/services/admin"
	"github.com/BearBump/GTLTrack/internal/services/auth"
	"github.com/BearBump/GTLTrack/internal/services/inquiry"
	"github.com/BearBump/GTLTrack/internal/services/siteinfo"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Tracker interface {
	Fetch(ctx context.Context, lr string) (*models.ShipmentRecord, error)
}

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
	Lookup(ctx context.Context, token string) (*auth.Session, error)
	Logout(ctx context.Context, token string) error
}

type RateLimiter interface {
	AllowPerMinute(ctx context.Context, bucket, client string, limit int64) (bool, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Tracker  Tracker
	Admin    *admin.Service
	Auth     Authenticator
	Inquiry  *inquiry.Service
	Contacts siteinfo.Contacts
	// nil disables rate limiting.
	Limiter RateLimiter
	// Checked by /readyz; nil means always ready.
	Ready Pinger
}

type Options struct {
	SwaggerPath      string
	TrackRateLimit   int64
	InquiryRateLimit int64
	// Cookie lifetime; 0 makes it a browser-session cookie.
	SessionTTL   time.Duration
	SecureCookie bool
	// Take the client address from X-Forwarded-For / X-Real-IP. Rate limits key on it.
	TrustProxy bool
}

type Server struct {
	d    Deps
	opts Options
}

func New(d Deps, opts Options) *Server {
	return &Server{d: d, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.readyz)
	if s.opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, s.opts.SwaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger.json"),
		))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/branches", s.branches)
		r.Get("/contacts", s.contacts)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit("track", s.opts.TrackRateLimit))
			r.Get("/track", s.track)
			r.Get("/track/{lr}", s.track)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit("inquiry", s.opts.InquiryRateLimit))
			r.Post("/inquiries", s.submitInquiry)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.login)
			r.Post("/logout", s.logout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/session", s.session)
				r.Get("/stats", s.stats)
				r.Get("/shipments", s.listShipments)
				r.Post("/shipments", s.createShipment)
				r.Get("/shipments/export.csv", s.exportShipments)
				r.Get("/shipments/stream", s.streamShipments)
				r.Put("/shipments/{lr}", s.updateShipment)
				r.Delete("/shipments/{lr}", s.deleteShipment)
			})
		})
	})
	return r
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.d.Ready != nil {
		if err := s.d.Ready.Ping(r.Context()); err != nil {
			slog.Warn("not ready", "error", err.Error())
			writeError(w, http.StatusServiceUnavailable, "redis unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
