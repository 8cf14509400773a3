// Package web is the HTTP surface of TrackDesk: public lookup, sign-in, and
// the admin console, all answering with JSON view models.
package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/TrackDesk/internal/auth"
	"github.com/BearBump/TrackDesk/internal/identity"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/janitor"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

const (
	DefaultCookieName = "trackdesk_sid"
	noticeCookieName  = "trackdesk_notice"
)

type TrackingService interface {
	List(ctx context.Context) ([]*models.Tracking, error)
	GetByCode(ctx context.Context, code string) (*models.Tracking, error)
	GetByID(ctx context.Context, id uint64) (*models.Tracking, error)
	Create(ctx context.Context, in models.TrackingCreateInput) (*models.Tracking, error)
	Update(ctx context.Context, code string, f models.TrackingFields) (*models.Tracking, error)
	Delete(ctx context.Context, id uint64) (string, error)
}

// Gates hands out the auth gate of a browser context.
type Gates interface {
	Get(browserID string) *auth.Gate
}

type Accounts interface {
	SignUp(ctx context.Context, email, password string) (*identity.User, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Janitor interface {
	Stats() janitor.Stats
	Trigger()
}

type Options struct {
	Trackings TrackingService
	Gates     Gates
	// Accounts enables POST /signup when set.
	Accounts Accounts
	Limiter  RateLimiter
	Janitor  Janitor
	// Checks are run by /readyz.
	Checks map[string]func(ctx context.Context) error

	PrivilegedID        string
	CookieName          string
	SecureCookies       bool
	LoginLimitPerMinute int
	// ReadyWait bounds how long a request waits for a loading gate.
	ReadyWait   time.Duration
	SwaggerPath string
}

type Server struct {
	opts  Options
	guard auth.Guard
	now   func() time.Time
}

func New(opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.ReadyWait <= 0 {
		opts.ReadyWait = 2 * time.Second
	}
	return &Server{
		opts:  opts,
		guard: auth.Guard{PrivilegedID: opts.PrivilegedID},
		now:   time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	s.mountSwagger(r)

	r.Group(func(r chi.Router) {
		r.Use(s.browserContext)

		r.Get("/", s.handleLanding)
		r.Get("/login", s.handleLoginView)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/signup", s.handleSignup)
		r.Get("/track", s.handleTrackLookup)
		r.Get("/track/{trackingId}", s.handleTrack)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/", s.handleAdminList)
			r.Post("/tracking/add", s.handleAdminCreate)
			r.Get("/tracking/edit/{trackingCode}", s.handleAdminEditView)
			r.Post("/tracking/edit/{trackingCode}", s.handleAdminUpdate)
			r.Post("/tracking/delete/{id}", s.handleAdminDelete)
			r.Get("/janitor", s.handleJanitorStats)
			r.Post("/janitor/trigger", s.handleJanitorTrigger)
		})
	})
	return r
}

func (s *Server) mountSwagger(r chi.Router) {
	if s.opts.SwaggerPath == "" {
		return
	}
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, s.opts.SwaggerPath)
	})

	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(s.opts.SwaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
}
