package handlers

import (
	"github.com/arrowlabs/rrlsched/internal/config"
	"github.com/arrowlabs/rrlsched/pkg/eventlog"
	"github.com/arrowlabs/rrlsched/pkg/scheduler"
)

// Handler exposes the scheduling engine over HTTP.
type Handler struct {
	engine *scheduler.Engine
	events *eventlog.Sink
	auth   config.Auth
}

func New(engine *scheduler.Engine, events *eventlog.Sink, auth config.Auth) *Handler {
	return &Handler{engine: engine, events: events, auth: auth}
}
