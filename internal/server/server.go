package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arrowlabs/rrlsched/internal/config"
)

// Server is the HTTP status/control surface in front of the scheduling
// engine. It runs in either dev (debug, HTTP) or prod (release, HTTP)
// mode depending on config.Server.ServerMode.
type Server struct {
	cfg    *config.Server
	router *gin.Engine
	http   *http.Server
	log    *zap.SugaredLogger
}

// RegisterFn registers routes under the /api/v1 group.
type RegisterFn func(router *gin.RouterGroup)

// NewServer builds a Server with the logging and panic-recovery
// middleware every route shares, then lets register wire the route
// table under /api/v1.
func NewServer(cfg *config.Server, register RegisterFn) *Server {
	if cfg.ServerMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log := zap.L().Named("http")
	router := gin.New()
	router.Use(ginzap.Ginzap(log, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(log, true))

	group := router.Group("/api/v1")
	register(group)

	return &Server{
		cfg:    cfg,
		router: router,
		log:    log.Sugar(),
	}
}

// Start runs the HTTP listener; it blocks until Stop is called or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler: s.router,
	}
	s.log.Infow("starting http server", "port", s.cfg.HTTPPort, "mode", s.cfg.ServerMode)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop performs a graceful shutdown, waiting for in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
