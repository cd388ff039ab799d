package scheduler

import (
	"time"

	"github.com/google/uuid"

	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
)

// SubmitFor submits input for processing with a validity window of
// validity, measured from now, and no initial delay.
func (e *Engine) SubmitFor(input any, validity time.Duration) (*Future[any], error) {
	return e.submit(input, validity.Milliseconds(), 0)
}

// SubmitForWithDelayFor is SubmitFor plus an initial delay before the
// entry first becomes eligible for dispatch.
func (e *Engine) SubmitForWithDelayFor(input any, validity, delay time.Duration) (*Future[any], error) {
	return e.submit(input, validity.Milliseconds(), delay.Milliseconds())
}

// SubmitUntil submits input with an absolute validity deadline.
func (e *Engine) SubmitUntil(input any, deadline time.Time) (*Future[any], error) {
	now := e.ts.now()
	return e.submit(input, e.ts.gapVirtual(now, deadline), 0)
}

// SubmitUntilWithDelayUntil submits input with an absolute validity
// deadline and an absolute earliest-processing timestamp.
func (e *Engine) SubmitUntilWithDelayUntil(input any, deadline, notBefore time.Time) (*Future[any], error) {
	now := e.ts.now()
	validityMs := e.ts.gapVirtual(now, deadline)
	delayMs := e.ts.gapVirtual(now, notBefore)
	if delayMs < 0 {
		delayMs = 0
	}
	return e.submit(input, validityMs, delayMs)
}

func (e *Engine) submit(input any, validityMs, delayMs int64) (*Future[any], error) {
	if validityMs <= 0 {
		return nil, rrlerrors.NewValidationError("validity", "must be positive")
	}
	if delayMs < 0 {
		return nil, rrlerrors.NewValidationError("delay", "must be non-negative")
	}
	if err := e.mayAcceptRequest(); err != nil {
		return nil, err
	}

	now := e.ts.now()
	id := uuid.New()
	future := newFuture[any](id.String(), input)
	en := &entry{
		id:                      id,
		engine:                  e,
		input:                   input,
		createdAt:               now,
		requestValidityDuration: validityMs,
		future:                  future,
	}
	if delayMs > 0 {
		en.earliestProcessingTimeAnchor = now
		en.earliestProcessingTimeDelay = delayMs
	}

	e.inFlight.Add(1)
	e.emit(Event{Kind: EventRequestAdded, RequestID: en.id.String(), QueueSize: e.queueDepth()})
	e.callAfterRequestAdded(en.id.String())

	e.enqueueMain(en)
	return future, nil
}

// mayAcceptRequest implements the accept/reject gate every submission
// passes through.
func (e *Engine) mayAcceptRequest() error {
	cs := e.getControlState()
	if cs.rejectsRequests() {
		e.emit(Event{Kind: EventErrorRequestRejected, Detail: cs.RejectRequestsReason})
		return rrlerrors.NewRejectionError(cs.RejectRequestsReason)
	}
	if e.inFlight.Load() >= int64(e.cfg.MaxPendingRequests) {
		e.emit(Event{Kind: EventErrorRequestRejected, Detail: "max pending requests reached"})
		return rrlerrors.NewRejectionError("max pending requests reached")
	}
	return nil
}
