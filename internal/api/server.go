package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/findrapp/findr/internal/classifier"
	"github.com/findrapp/findr/internal/identity"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/observability"
	"github.com/findrapp/findr/internal/sightings"
)

// Classifier classifies uploaded images.
type Classifier interface {
	ClassifyBytes(ctx context.Context, data []byte) (classifier.Result, error)
}

// SightingService is the persistence surface the handlers use.
type SightingService interface {
	Create(ctx context.Context, d sightings.Draft, result *classifier.Result, photoRef string) (sightings.Sighting, error)
	Update(ctx context.Context, id string, patch sightings.Patch) (sightings.Sighting, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (sightings.Sighting, bool, error)
	ListByOwner(ctx context.Context, ownerID string) ([]sightings.Sighting, error)
	ListAll(ctx context.Context) ([]sightings.Sighting, error)
	InRadius(ctx context.Context, lat, lng, radiusKm float64) ([]sightings.Sighting, error)
	Snapshot(ctx context.Context) ([]sightings.Sighting, error)
}

// IdentityService is the account surface the handlers use.
type IdentityService interface {
	SignUp(ctx context.Context, email, password, username string) (identity.User, error)
	SignIn(ctx context.Context, email, password string) (identity.User, error)
	SignOut(ctx context.Context) error
	CurrentUser(ctx context.Context) (identity.User, bool, error)
	UserByID(ctx context.Context, id string) (identity.User, bool)
	Usernames(ctx context.Context, ids []string) map[string]string
	AllUsers(ctx context.Context) []identity.User
}

// SightingReconciler pushes queued sightings.
type SightingReconciler interface {
	Run(ctx context.Context) (sightings.Report, error)
}

// AccountMirror pushes unmirrored accounts.
type AccountMirror interface {
	Reconcile(ctx context.Context) (identity.MirrorReport, error)
}

// Deps are the services behind the routes. Nil services disable their routes'
// functionality with 503 responses.
type Deps struct {
	Classifier Classifier
	Sightings  SightingService
	Identity   IdentityService
	Reconciler SightingReconciler
	Mirror     AccountMirror
	Metrics    *observability.Metrics
}

// Server is the HTTP API server.
type Server struct {
	echo      *echo.Echo
	cfg       Config
	deps      Deps
	log       logger.Logger
	now       func() time.Time
	startTime time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithClock overrides time.Now for stats and health output.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a server with all routes registered.
func New(cfg Config, deps Deps, opts ...Option) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	s.startTime = s.now()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"))
	e.HTTPErrorHandler = s.errorHandler
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Server.IdleTimeout = cfg.IdleTimeout
	s.echo = e

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(requestID())
	s.echo.Use(requestLogger(s.log))
	if s.deps.Metrics != nil {
		s.echo.Use(metricsMiddleware(s.deps.Metrics.HTTP))
	}
	if s.cfg.BodyLimit != "" {
		s.echo.Use(echomw.BodyLimit(s.cfg.BodyLimit))
	}
}

func (s *Server) setupRoutes() {
	g := s.echo.Group("/api/v1")

	g.GET("/health", s.health)
	if s.deps.Metrics != nil {
		g.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}

	g.POST("/classify", s.classify)

	g.POST("/sightings", s.createSighting)
	g.GET("/sightings", s.listSightings)
	g.GET("/sightings/nearby", s.nearbySightings)
	g.GET("/sightings/:id", s.getSighting)
	g.PATCH("/sightings/:id", s.updateSighting)
	g.DELETE("/sightings/:id", s.deleteSighting)

	g.POST("/auth/signup", s.signUp)
	g.POST("/auth/signin", s.signIn)
	g.POST("/auth/signout", s.signOut)
	g.GET("/auth/me", s.me)
	g.GET("/users", s.listUsers)
	g.GET("/users/:id", s.getUser)

	g.GET("/stats/:owner", s.ownerStats)
	g.GET("/leaderboard", s.leaderboard)

	g.POST("/reconcile", s.reconcile)
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", s.cfg.Listen))
		if err := s.echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	return s.Shutdown()
}

// Shutdown stops the server within the configured timeout.
func (s *Server) Shutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("HTTP server shutting down")
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
