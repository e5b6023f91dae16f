// Package sandbox is an in-memory stand-in for the game backend. It serves
// the same HTTP contract as the real server with simplified, deterministic
// rules, for tests and local demos.
package sandbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const contextKeyAccount = "sandbox_account"

// Server is the fake backend. One mutex guards all state, so handlers see
// a consistent world.
type Server struct {
	echo   *echo.Echo
	logger *slog.Logger
	cost   int

	mu       sync.Mutex
	accounts map[string]*account
	tokens   map[string]*account
	world    *world
	nextID   int
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHashCost sets the bcrypt cost for stored passwords.
func WithHashCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

// New creates a sandbox with the shared world seeded.
func New(opts ...Option) *Server {
	s := &Server{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		cost:     bcrypt.DefaultCost,
		accounts: make(map[string]*account),
		tokens:   make(map[string]*account),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.world = seedWorld(s.id)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Use(s.recovery, s.requestLogger)
	s.echo = e
	s.routes()
	return s
}

// ServeHTTP lets the sandbox back an httptest.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops a server started with Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Expire invalidates every token issued to username, as if they had timed
// out server-side.
func (s *Server) Expire(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, a := range s.tokens {
		if a.username == username {
			delete(s.tokens, tok)
		}
	}
}

// GrantLingshi adds spirit stones to a user's character.
func (s *Server) GrantLingshi(username string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[username]; ok {
		a.lingshi += amount
	}
}

func (s *Server) id() int {
	s.nextID++
	return s.nextID
}

func (s *Server) issueToken(a *account) string {
	tok := uuid.NewString()
	s.tokens[tok] = a
	return tok
}

// requireToken resolves the raw Authorization header to an account and
// holds the state lock for the rest of the request.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tok := c.Request().Header.Get(echo.HeaderAuthorization)
		if tok == "" {
			return message(c, http.StatusUnauthorized, "Token is missing!")
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		a, ok := s.tokens[tok]
		if !ok {
			return message(c, http.StatusUnauthorized, "Token is invalid!")
		}
		c.Set(contextKeyAccount, a)
		return next(c)
	}
}

// withCharacter additionally requires the account to have a character.
func (s *Server) withCharacter(h func(echo.Context, *account) error) echo.HandlerFunc {
	return func(c echo.Context) error {
		a := c.Get(contextKeyAccount).(*account)
		if a.char == nil {
			return message(c, http.StatusNotFound, "No character found")
		}
		return h(c, a)
	}
}

func (s *Server) recovery(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic recovered", "panic", r, "path", c.Request().URL.Path)
				err = message(c, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		return next(c)
	}
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		res := c.Response()
		level := slog.LevelInfo
		if res.Status >= 500 {
			level = slog.LevelError
		} else if res.Status >= 400 {
			level = slog.LevelWarn
		}
		s.logger.Log(c.Request().Context(), level, "request",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"status", res.Status,
			"latency", time.Since(start),
		)
		return err
	}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "An unexpected error occurred"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	message(c, code, msg)
}

func message(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]any{"message": msg})
}

func reply(c echo.Context, code int, msg string, extra map[string]any) error {
	body := map[string]any{"message": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(code, body)
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid id")
	}
	return id, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON")
	}
	return nil
}
