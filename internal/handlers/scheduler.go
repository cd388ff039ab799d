package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/arrowlabs/rrlsched/api/v1"
	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
)

const defaultEventLimit = 50

// Register wires the scheduler status/control routes under group. The
// shutdown route is gated behind a bearer token when auth is enabled.
func (h *Handler) Register(group *gin.RouterGroup) {
	group.GET("/status", h.GetStatus)
	group.POST("/requests", h.SubmitRequest)
	group.GET("/events", h.GetEvents)

	if h.auth.Enabled {
		group.POST("/shutdown", RequireBearerToken(h.auth.JWTSecret), h.Shutdown)
	} else {
		group.POST("/shutdown", h.Shutdown)
	}
}

// GetStatus returns a point-in-time snapshot of the engine.
// (GET /status)
func (h *Handler) GetStatus(c *gin.Context) {
	s := h.engine.GetStatus(0)

	delayQueuesMs := make([]int64, len(s.Config.DelayQueues))
	for i, d := range s.Config.DelayQueues {
		delayQueuesMs[i] = d.Milliseconds()
	}

	c.JSON(http.StatusOK, v1.StatusResponse{
		ControlState:      s.ControlState,
		AcceptingRequests: s.AcceptingRequests,

		QueueSize:        s.QueueSize,
		InFlightRequests: s.InFlightRequests,
		ActiveWorkers:    s.ActiveWorkers,
		AvailableTickets: s.AvailableTickets,

		MainLoopAlive:   s.MainLoopAlive,
		DelayTiersAlive: s.DelayTiersAlive,
		WorkerPoolAlive: s.WorkerPoolAlive,
		EverythingAlive: s.EverythingAlive,

		Config: v1.ConfigSnapshotResponse{
			ServiceName:           s.Config.ServiceName,
			MaxAttempts:           s.Config.MaxAttempts,
			MaxPendingRequests:    s.Config.MaxPendingRequests,
			DelayQueuesMs:         delayQueuesMs,
			RequestProcessingMin:  s.Config.RequestProcessingThreadPoolConfig.Min,
			RequestProcessingMax:  s.Config.RequestProcessingThreadPoolConfig.Max,
			RateLimiterBucketSize: s.Config.RateLimiterBucketSize,
			RateLimiterRefillRate: s.Config.RateLimiterRefillRate,
		},

		GeneratedAt: s.GeneratedAt,
	})
}

// SubmitRequest accepts a new request for processing.
// (POST /requests)
func (h *Handler) SubmitRequest(c *gin.Context) {
	var req v1.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}

	validity := time.Duration(req.ValidityMs) * time.Millisecond

	var (
		future interface {
			RequestID() string
		}
		err error
	)
	if req.DelayForMs > 0 {
		delay := time.Duration(req.DelayForMs) * time.Millisecond
		future, err = h.engine.SubmitForWithDelayFor(req.Payload, validity, delay)
	} else {
		future, err = h.engine.SubmitFor(req.Payload, validity)
	}
	if err != nil {
		writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, v1.SubmitResponse{RequestID: future.RequestID()})
}

func writeSubmitError(c *gin.Context, err error) {
	var validationErr *rrlerrors.ValidationError
	var rejectionErr *rrlerrors.RejectionError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
	case errors.As(err, &rejectionErr):
		c.JSON(http.StatusServiceUnavailable, v1.ErrorResponse{Error: err.Error()})
	default:
		zap.S().Named("http").Errorw("failed to submit request", "error", err)
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "failed to submit request"})
	}
}

// GetEvents returns the most recently persisted engine events.
// (GET /events)
func (h *Handler) GetEvents(c *gin.Context) {
	if h.events == nil {
		c.JSON(http.StatusOK, []v1.EventRecord{})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	records, err := h.events.Recent(ctx, defaultEventLimit)
	if err != nil {
		zap.S().Named("http").Errorw("failed to read event log", "error", err)
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: "failed to read event log"})
		return
	}

	out := make([]v1.EventRecord, 0, len(records))
	for _, r := range records {
		out = append(out, v1.EventRecord{
			Kind:          r.Kind,
			RequestID:     r.RequestID,
			AttemptNumber: r.AttemptNumber,
			Cause:         r.Cause,
			Detail:        r.Detail,
			OccurredAt:    r.OccurredAt,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Shutdown begins a bounded-time graceful shutdown of the engine.
// (POST /shutdown)
func (h *Handler) Shutdown(c *gin.Context) {
	var req v1.ShutdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, v1.ErrorResponse{Error: err.Error()})
		return
	}

	limit := time.Duration(req.LimitMs) * time.Millisecond
	if err := h.engine.ShutdownFor(limit); err != nil {
		var illegalErr *rrlerrors.IllegalStateError
		if errors.As(err, &illegalErr) {
			c.JSON(http.StatusConflict, v1.ErrorResponse{Error: err.Error()})
			return
		}
		zap.S().Named("http").Errorw("shutdown failed", "error", err)
		c.JSON(http.StatusInternalServerError, v1.ErrorResponse{Error: err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
