// Package server provides the HTTP status/control surface in front of
// the scheduling engine.
//
// The server uses the Gin web framework and supports two modes of
// operation controlled by config.Server.ServerMode: "dev" (debug
// logging, verbose router output) and "prod" (release mode).
//
// # Middleware
//
// Every route under /api/v1 passes through two middleware, in the same
// order the handlers package expects:
//
//   - ginzap.Ginzap: structured request/response logging via the "http"
//     named zap logger.
//   - ginzap.RecoveryWithZap: panic recovery with stack trace logging,
//     returning 500 on an unhandled panic.
//
// # Usage
//
//	h := handlers.New(engine, eventSink, cfg.Auth)
//	srv := server.NewServer(&cfg.Server, func(group *gin.RouterGroup) {
//	    h.Register(group)
//	})
//	go srv.Start(ctx)
//	<-shutdownCh
//	srv.Stop(ctx)
package server
