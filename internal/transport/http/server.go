// Package apihttp serves the read-only dashboard API over gin.
package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade/internal/engine"
	"papertrade/internal/logger"
	"papertrade/internal/report"
	"papertrade/internal/sink"
)

// StatusProvider publishes the latest tick snapshot.
type StatusProvider interface {
	Status() engine.Status
}

// ServerConfig describes the HTTP server dependencies. Store may be nil
// when the SQLite sink is disabled; history endpoints then return 503.
type ServerConfig struct {
	Addr       string
	Status     StatusProvider
	Store      *sink.SQLite
	ConfigYAML []byte // sanitized config dump for /api/config
}

type Server struct {
	addr   string
	router *gin.Engine
	cfg    ServerConfig
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Status == nil {
		return nil, errors.New("http server requires a status provider")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, router: router, cfg: cfg}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/trades", s.handleTrades)
	api.GET("/equity", s.handleEquity)
	api.GET("/config", s.handleConfig)
	api.GET("/report", s.handleReport)

	return s, nil
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.cfg.Status.Status())
}

func (s *Server) handleTrades(c *gin.Context) {
	if s.cfg.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sqlite sink disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := s.cfg.Store.RecentTrades(c.Request.Context(), c.Query("symbol"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *Server) handleEquity(c *gin.Context) {
	if s.cfg.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sqlite sink disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "1000"))
	curve, err := s.cfg.Store.EquityCurve(c.Request.Context(), parseSince(c.Query("since")), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"equity": curve})
}

func (s *Server) handleConfig(c *gin.Context) {
	if len(s.cfg.ConfigYAML) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "config dump unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/yaml", s.cfg.ConfigYAML)
}

func (s *Server) handleReport(c *gin.Context) {
	if s.cfg.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sqlite sink disabled"})
		return
	}
	ctx := c.Request.Context()
	curve, err := s.cfg.Store.EquityCurve(ctx, time.Time{}, 5000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	trades, err := s.cfg.Store.RecentTrades(ctx, "", 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	html, err := report.BuildHTML(report.Input{Title: "paper trading session", Curve: curve, Trades: trades})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func parseSince(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
