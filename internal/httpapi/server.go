// Package httpapi serves the task manager over a local JSON API with a
// Server-Sent Events stream of state changes.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"taskmate/internal/auth"
	"taskmate/internal/logging"
	"taskmate/internal/tasks"
)

// ShutdownTimeout bounds graceful shutdown once the serve context ends.
const ShutdownTimeout = 5 * time.Second

// Session is the sign-in state the API drives. *auth.Tracker implements it.
type Session interface {
	SignIn(ctx context.Context, email, password string) (auth.Identity, error)
	SignUp(ctx context.Context, email, password string) (auth.Identity, error)
	SignOut() error
	CurrentOwner() string
}

// Server exposes a tasks.Manager over HTTP.
type Server struct {
	echo    *echo.Echo
	tasks   *tasks.Manager
	session Session
	log     log.FieldLogger

	allowOrigins []string

	// stopping is closed when Serve starts shutting down, ending open
	// event streams.
	stopping chan struct{}
	stopOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins lets browser pages from the given origins call the
// API. Requests carrying any other Origin are rejected.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowOrigins = append(s.allowOrigins, origins...)
	}
}

// New builds the echo instance and registers every route.
func New(mgr *tasks.Manager, session Session, logger log.FieldLogger, opts ...Option) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{tasks: mgr, session: session, log: logger, stopping: make(chan struct{})}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = sonicSerializer{}
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	if len(s.allowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.allowOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		}))
	}
	e.Use(s.checkOrigin)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logger.WithFields(log.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
			} else {
				entry.Debug("request")
			}
			return nil
		},
	}))

	s.echo = e
	s.register()
	return s
}

// checkOrigin rejects cross-origin requests from pages that are not
// allowed. Requests without an Origin header (curl, the CLI) and
// same-origin requests pass.
func (s *Server) checkOrigin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		origin := c.Request().Header.Get(echo.HeaderOrigin)
		if origin == "" || s.originAllowed(origin, c.Request().Host) {
			return next(c)
		}
		s.log.WithField("origin", origin).Warn("rejected cross-origin request")
		return echo.NewHTTPError(http.StatusForbidden, "origin not allowed")
	}
}

func (s *Server) originAllowed(origin, host string) bool {
	if origin == "http://"+host {
		return true
	}
	for _, o := range s.allowOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) register() {
	api := s.echo.Group("/api")
	api.GET("/state", s.getState)
	api.GET("/tasks", s.getTasks)
	api.POST("/tasks", s.addTask)
	api.PATCH("/tasks/:id", s.toggleTask)
	api.DELETE("/tasks/:id", s.removeTask)
	api.POST("/refresh", s.refresh)
	api.PUT("/filter", s.setFilter)
	api.POST("/session/signin", s.signIn)
	api.POST("/session/signup", s.signUp)
	api.DELETE("/session", s.signOut)
	api.GET("/events", s.streamEvents)
	s.echo.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
}

// errorHandler renders every echo error as {"error": "..."}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = http.StatusText(code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, errorResponse{Error: msg})
}

// Handler returns the HTTP handler (for tests and embedding).
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve accepts connections on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.stopOnce.Do(func() { close(s.stopping) })
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
