// Package v1 holds the request/response contract for the status and
// control HTTP surface the process exposes alongside the scheduler
// engine.
package v1

import "time"

// StatusResponse mirrors scheduler.Status for JSON clients.
type StatusResponse struct {
	ControlState      string `json:"controlState"`
	AcceptingRequests bool   `json:"acceptingRequests"`

	QueueSize        int   `json:"queueSize"`
	InFlightRequests int64 `json:"inFlightRequests"`
	ActiveWorkers    int   `json:"activeWorkers"`
	AvailableTickets int64 `json:"availableTickets"`

	MainLoopAlive   bool   `json:"mainLoopAlive"`
	DelayTiersAlive []bool `json:"delayTiersAlive"`
	WorkerPoolAlive bool   `json:"workerPoolAlive"`
	EverythingAlive bool   `json:"everythingAlive"`

	Config ConfigSnapshotResponse `json:"config"`

	GeneratedAt time.Time `json:"generatedAt"`
}

// ConfigSnapshotResponse mirrors scheduler.ConfigSnapshot for JSON clients.
type ConfigSnapshotResponse struct {
	ServiceName           string  `json:"serviceName"`
	MaxAttempts           int     `json:"maxAttempts"`
	MaxPendingRequests    int     `json:"maxPendingRequests"`
	DelayQueuesMs         []int64 `json:"delayQueuesMs"`
	RequestProcessingMin  int     `json:"requestProcessingMin"`
	RequestProcessingMax  int     `json:"requestProcessingMax"`
	RateLimiterBucketSize int64   `json:"rateLimiterBucketSize"`
	RateLimiterRefillRate int64   `json:"rateLimiterRefillRate"`
}

// SubmitRequest is the body accepted by POST /api/v1/requests.
type SubmitRequest struct {
	Payload    string `json:"payload" binding:"required"`
	ValidityMs int64  `json:"validityMs" binding:"required"`
	DelayForMs int64  `json:"delayForMs,omitempty"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	RequestID string `json:"requestId"`
}

// ShutdownRequest is the body accepted by POST /api/v1/shutdown.
type ShutdownRequest struct {
	LimitMs int64 `json:"limitMs" binding:"required"`
}

// EventRecord mirrors eventlog.Record for JSON clients.
type EventRecord struct {
	Kind          string    `json:"kind"`
	RequestID     string    `json:"requestId,omitempty"`
	AttemptNumber int       `json:"attemptNumber,omitempty"`
	Cause         string    `json:"cause,omitempty"`
	Detail        string    `json:"detail,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// ErrorResponse is the JSON body returned on any handler failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
