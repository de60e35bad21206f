// Package server exposes the seeding run over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
)

// SeedPath is the invocation endpoint.
const SeedPath = "/seed-trending"

const shutdownTimeout = 10 * time.Second

// Runner performs one seeding invocation. A nil override uses the configured window.
type Runner func(ctx context.Context, override *domain.Window) (domain.RunOutcome, error)

// Server serves the invocation endpoint.
type Server struct {
	router *gin.Engine
	run    Runner
	log    logger.Logger
}

// New builds the router around run.
func New(run Runner, log logger.Logger) *Server {
	if log == nil {
		log = logger.NopLogger{}
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{router: gin.New(), run: run, log: log}
	s.router.Use(requestLogger(log), gin.Recovery())
	s.router.Use(cors.New(corsConfig()))

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.POST(SeedPath, s.handleSeed)
	s.router.GET(SeedPath, s.handleSeed)
	s.router.OPTIONS(SeedPath, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return s
}

func corsConfig() cors.Config {
	return cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:              []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		MaxAge:                    12 * time.Hour,
		OptionsResponseStatusCode: http.StatusOK,
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.InfoObj("http server shutting down", "reason", ctx.Err())
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleSeed(c *gin.Context) {
	var override *domain.Window
	if raw := c.Query("date"); raw != "" {
		w, err := domain.ParseWindow(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		override = &w
	}

	// The run outlives a caller that hangs up mid-request.
	ctx := context.WithoutCancel(c.Request.Context())
	outcome, err := s.run(ctx, override)
	if err != nil || outcome.Failed() {
		if outcome.Error == "" && err != nil {
			outcome.Error = err.Error()
		}
		outcome.Status = domain.StatusFailed
		c.JSON(http.StatusInternalServerError, outcome)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.InfoObj("request processed", "http_request", map[string]any{
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
}
