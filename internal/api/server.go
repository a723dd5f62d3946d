// Package api exposes the engine's runtime state over a small read-only
// HTTP surface: health, current status, recent dispatch history, and the
// delivery journal.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/example/mailwatch/internal/dispatch"
	"github.com/example/mailwatch/internal/journal"
	"github.com/example/mailwatch/internal/models"
	"github.com/example/mailwatch/internal/scheduler"
)

// Engine is the scheduler surface the API reads from.
type Engine interface {
	State() scheduler.State
	LastCycle() (models.CycleStats, bool)
}

// Journal is the delivery journal surface the API reads from.
type Journal interface {
	Len() int
	Entries() []journal.Entry
}

// Config describes the server address and the static facts reported by the
// status endpoint.
type Config struct {
	Addr     string
	Policy   dispatch.Policy
	Interval time.Duration
	Kinds    []models.ChannelKind
}

// Dependencies collects the server's collaborators. Engine is required;
// History and Journal may be nil, in which case their endpoints report
// empty collections.
type Dependencies struct {
	Engine  Engine
	History *dispatch.History
	Journal Journal
	Logger  zerolog.Logger
}

// Server serves the status endpoints.
type Server struct {
	echo    *echo.Echo
	logger  zerolog.Logger
	cfg     Config
	engine  Engine
	history *dispatch.History
	journal Journal
}

type statusResponse struct {
	State           scheduler.State      `json:"state"`
	Policy          dispatch.Policy      `json:"policy"`
	IntervalSeconds int                  `json:"check_interval_seconds"`
	Channels        []models.ChannelKind `json:"channels"`
	JournalEntries  int                  `json:"journal_entries"`
	LastCycle       *models.CycleStats   `json:"last_cycle,omitempty"`
}

// New constructs the API server.
func New(cfg Config, deps Dependencies) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("api: listen address must be provided")
	}
	if deps.Engine == nil {
		return nil, errors.New("api: engine dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "api").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	server := &Server{
		echo:    e,
		logger:  logger,
		cfg:     cfg,
		engine:  deps.Engine,
		history: deps.History,
		journal: deps.Journal,
	}

	e.GET("/healthz", server.health)
	e.GET("/api/status", server.status)
	e.GET("/api/history", server.historyList)
	e.GET("/api/journal", server.journalList)

	return server, nil
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("api: listening")
	if err := s.echo.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests to drain.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(c echo.Context) error {
	resp := statusResponse{
		State:           s.engine.State(),
		Policy:          s.cfg.Policy,
		IntervalSeconds: int(s.cfg.Interval / time.Second),
		Channels:        s.cfg.Kinds,
	}
	if s.journal != nil {
		resp.JournalEntries = s.journal.Len()
	}
	if stats, ok := s.engine.LastCycle(); ok {
		resp.LastCycle = &stats
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) historyList(c echo.Context) error {
	if s.history == nil {
		return c.JSON(http.StatusOK, []dispatch.Summary{})
	}
	return c.JSON(http.StatusOK, s.history.Recent())
}

func (s *Server) journalList(c echo.Context) error {
	if s.journal == nil {
		return c.JSON(http.StatusOK, []journal.Entry{})
	}
	return c.JSON(http.StatusOK, s.journal.Entries())
}
