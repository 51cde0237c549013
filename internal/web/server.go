// Package web provides the HTTP status and input server for the tapassist daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sweeney/tapassist/internal/input"
	"github.com/sweeney/tapassist/internal/journal"
	"github.com/sweeney/tapassist/internal/metrics"
	"github.com/sweeney/tapassist/internal/status"
)

// History serves recent journal entries.
type History interface {
	Recent(ctx context.Context, n int) ([]journal.Entry, error)
}

// Options configure a Server. Tracker is required; everything else is
// optional and its routes answer 404 or 503 when missing.
type Options struct {
	Addr    string
	Tracker *status.Tracker
	Metrics *metrics.Metrics
	History History
	// Input receives taps and long presses posted over HTTP.
	Input input.Sink
	// Limiter caps posted input; nil allows everything.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// Server serves the status page, metrics and remote input over HTTP.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	history    History
	sink       input.Sink
	limited    *input.LimitedSink
	logger     *zap.Logger
}

// New creates a Server that reads state from the tracker.
func New(o Options) *Server {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			o.Logger.Debug("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{
		echo:    e,
		tracker: o.Tracker,
		metrics: o.Metrics,
		history: o.History,
		sink:    o.Input,
		logger:  o.Logger,
	}
	if o.Input != nil {
		s.limited = input.Limited(o.Input, o.Limiter, nil)
	}
	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:              o.Addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/index.html", s.handleIndex)
	s.echo.GET("/index.json", s.handleJSON)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	s.echo.GET("/history.json", s.handleHistory)
	s.echo.POST("/input/tap", s.handleInput(input.KindTap))
	s.echo.POST("/input/long-press", s.handleInput(input.KindLongPress))
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c echo.Context) error {
	snap := s.tracker.Snapshot()
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return renderHTML(c.Response(), snap)
}

func (s *Server) handleJSON(c echo.Context) error {
	snap := s.tracker.Snapshot()
	return c.Blob(http.StatusOK, "application/json", status.FormatJSON(snap))
}

func (s *Server) handleHistory(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "journal disabled")
	}
	limit := journal.DefaultRecent
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistory {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxHistory))
		}
		limit = n
	}

	entries, err := s.history.Recent(c.Request().Context(), limit)
	if err != nil {
		s.logger.Warn("history query failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history unavailable")
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return c.JSON(http.StatusOK, HistoryJSON{History: entries})
}

func (s *Server) handleInput(kind input.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.limited == nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "input disabled")
		}
		if !s.limited.Allow() {
			s.metrics.InputDropped(string(kind))
			return echo.NewHTTPError(http.StatusTooManyRequests, "input rate exceeded")
		}
		input.Deliver(s.sink, kind)
		return c.JSON(http.StatusAccepted, InputJSON{Accepted: string(kind)})
	}
}
