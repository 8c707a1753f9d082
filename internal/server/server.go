// Package server exposes the aggregator over HTTP with gin.
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rileyhilliard/pxd/internal/aggregate"
	"github.com/rileyhilliard/pxd/internal/api"
	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/rileyhilliard/pxd/internal/scripts"
	"github.com/rileyhilliard/pxd/internal/suggest"
	"golang.org/x/time/rate"
)

// Deps are the components the handlers call. Metrics and Gatherer may be nil.
type Deps struct {
	Aggregator *aggregate.Aggregator
	Scripts    *scripts.Runner
	Suggest    *suggest.Client
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
	Log        logger.Logger
}

// Server is the HTTP API.
type Server struct {
	cfg     config.ServerConfig
	agg     *aggregate.Aggregator
	scripts *scripts.Runner
	suggest *suggest.Client
	metrics *metrics.Metrics
	log     logger.Logger
	limiter *rateLimiter
	engine  *gin.Engine
}

// New builds the router.
func New(cfg config.ServerConfig, d Deps) *Server {
	s := &Server{
		cfg:     cfg,
		agg:     d.Aggregator,
		scripts: d.Scripts,
		suggest: d.Suggest,
		metrics: d.Metrics,
		log:     logger.Named(d.Log, "server"),
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}

	r := gin.New()
	r.Use(s.requestID(), s.recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, api.Success(gin.H{"status": "ok"}))
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	g := r.Group("/api")
	if s.limiter != nil {
		g.Use(s.limiter.middleware())
	}
	s.routes(g)

	s.engine = r
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.limiter != nil {
		go s.limiter.cleanup(ctx, time.Minute, 3*time.Minute)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Couldn't listen on "+s.cfg.Listen,
			"Pick another address with server.listen or --listen.")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, v any) {
		s.log.Error("panic in %s: %v", c.FullPath(), v)
		c.AbortWithStatusJSON(http.StatusInternalServerError, api.Envelope{
			Error: &api.Error{Code: api.CodeUnknown, Message: "internal error"},
		})
	})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.HTTPRequest(route, strconv.Itoa(status))
		s.log.Debug("%s %s %d %s [%s]", c.Request.Method, c.Request.URL.Path, status,
			time.Since(start).Round(time.Millisecond), c.GetString("request_id"))
	}
}
