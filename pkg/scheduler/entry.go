package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// entry is the per-submission mutable state carried through the
// pipeline. Ownership is strictly serial: at any moment exactly one
// of {main queue, a delay tier, the main-loop goroutine, a worker
// goroutine} reads or writes its mutable fields, so no
// per-entry lock is used.
type entry struct {
	id uuid.UUID

	engine *Engine // non-owning back-reference; the engine outlives every entry

	input any
	createdAt time.Time
	requestValidityDuration int64 // virtual ms

	future *Future[any]

	inDelayQueueSince time.Time // zero if not currently in a delay tier

	delayAnchor time.Time
	delayFor    int64 // virtual ms

	earliestProcessingTimeAnchor time.Time
	earliestProcessingTimeDelay  int64 // virtual ms

	numberOfFailedAttempts int

	totalProcessingTime time.Duration

	customData any
}

func (e *entry) hasDelayAnchor() bool {
	return !e.earliestProcessingTimeAnchor.IsZero()
}

func (e *entry) clearDelayAnchor() {
	e.earliestProcessingTimeAnchor = time.Time{}
	e.earliestProcessingTimeDelay = 0
}

func (e *entry) inDelayTier() bool {
	return !e.inDelayQueueSince.IsZero()
}
