package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/trovahq/trova/internal/notify"
	"github.com/trovahq/trova/internal/report"
)

// Status is the bridge's view of the agent for the UI shell.
type Status struct {
	State             string   `json:"state"`
	ReconnectAttempts int      `json:"reconnect_attempts"`
	Rooms             []string `json:"rooms"`
	UserID            string   `json:"user_id"`
}

// ServerConfig wires the bridge server to the agent's components.
type ServerConfig struct {
	Addr   string
	Status func() Status
	Feed   *notify.Feed
	Drafts *report.Controller
	Log    *logrus.Entry
}

// Server is the localhost HTTP bridge the UI shell talks to: agent status,
// a live notification stream, and the draft wizard operations.
type Server struct {
	echo *echo.Echo
	cfg  ServerConfig
	log  *logrus.Entry
}

// NewServer creates the bridge server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	s := &Server{echo: e, cfg: cfg, log: cfg.Log}

	e.GET("/healthz", s.handleHealth)
	e.GET("/status", s.handleStatus)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/events", s.handleEvents)

	e.GET("/draft", s.handleDraftGet)
	e.POST("/draft/next", s.handleDraftNext)
	e.POST("/draft/back", s.handleDraftBack)
	e.POST("/draft/save", s.handleDraftSave)
	e.POST("/draft/load", s.handleDraftLoad)
	e.POST("/draft/discard", s.handleDraftDiscard)
	e.POST("/draft/submit", s.handleDraftSubmit)

	return s
}

// Start runs the server until Shutdown.
func (s *Server) Start() error {
	s.log.WithField("addr", s.cfg.Addr).Info("bridge server listening")
	return s.echo.Start(s.cfg.Addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cfg.Status())
}

// handleEvents streams projected notifications to the UI over SSE. The
// subscription is released when the client goes away.
func (s *Server) handleEvents(c echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	events, cancel := s.cfg.Feed.Subscribe()
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-events:
			if !ok {
				return nil
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func (s *Server) handleDraftGet(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"step": s.cfg.Drafts.Step(),
		"data": s.cfg.Drafts.Data(),
	})
}

func (s *Server) handleDraftNext(c echo.Context) error {
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.cfg.Drafts.Next(body.Data)
	return c.JSON(http.StatusOK, map[string]any{"step": s.cfg.Drafts.Step()})
}

func (s *Server) handleDraftBack(c echo.Context) error {
	var body struct {
		Step int `json:"step"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	s.cfg.Drafts.Back(body.Step)
	return c.JSON(http.StatusOK, map[string]any{"step": s.cfg.Drafts.Step()})
}

func (s *Server) handleDraftSave(c echo.Context) error {
	if err := s.cfg.Drafts.SaveDraft(); err != nil {
		// The user must know their progress was not saved.
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("your progress was not saved: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) handleDraftLoad(c echo.Context) error {
	result, err := s.cfg.Drafts.LoadDraft()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("could not load saved draft: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]any{
		"found":     result.Outcome == report.LoadFound,
		"last_step": result.LastStep,
	})
}

func (s *Server) handleDraftDiscard(c echo.Context) error {
	if err := s.cfg.Drafts.Discard(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError,
			fmt.Sprintf("could not discard draft: %v", err))
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "discarded"})
}

func (s *Server) handleDraftSubmit(c echo.Context) error {
	if err := s.cfg.Drafts.Submit(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "submitted"})
}
