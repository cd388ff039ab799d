package scheduler

import (
	"context"
	"fmt"
)

// runAttempt runs exactly one attempt of one entry's processing
// callback and hands the outcome to the retry decision.
func (e *Engine) runAttempt(ctx context.Context, en *entry) {
	attempt := en.numberOfFailedAttempts + 1
	e.emit(Event{Kind: EventRequestExecuting, RequestID: en.id.String(), AttemptNumber: attempt})

	start := e.ts.now()
	result, err := e.invokeProcessor(ctx, en)
	en.totalProcessingTime += e.ts.now().Sub(start)

	if err == nil {
		e.handleSuccess(en, result, attempt)
		return
	}

	e.afterFailedAttempt(en, err, attempt)
}

// invokeProcessor calls the caller-supplied Processor, converting a
// panic into an error so one misbehaving callback cannot take down the
// worker goroutine.
func (e *Engine) invokeProcessor(ctx context.Context, en *entry) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing callback panicked: %v", r)
		}
	}()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return e.processor(en.input)
}

// afterFailedAttempt implements the post-attempt decision rule in the
// order the control flow requires it: the attempt budget first, then
// remaining validity, then the control state's
// TimeoutRequestsAfterFailedAttempt override, and only then a retry. A
// retry re-enters the main queue with a fresh delay anchor so the main
// loop's decision rule routes it through the delay queue.
func (e *Engine) afterFailedAttempt(en *entry, cause error, attempt int) {
	en.numberOfFailedAttempts = attempt
	e.emit(Event{Kind: EventRequestAttemptFailed, RequestID: en.id.String(), AttemptNumber: attempt, Cause: cause})

	if attempt >= e.cfg.MaxAttempts {
		e.emit(Event{Kind: EventRequestAttemptFailedDecision, RequestID: en.id.String(), Detail: "finalFailure"})
		e.handleFinalFailure(en, cause, attempt)
		return
	}

	remainingValidity := en.requestValidityDuration - e.ts.gapVirtual(en.createdAt, e.ts.now())
	if remainingValidity <= 0 {
		e.emit(Event{Kind: EventRequestAttemptFailedDecision, RequestID: en.id.String(), Detail: "timeout"})
		e.handleTimeout(en)
		return
	}

	if e.getControlState().TimeoutRequestsAfterFailedAttempt {
		e.emit(Event{Kind: EventRequestAttemptFailedDecision, RequestID: en.id.String(), Detail: "timeout"})
		e.handleTimeout(en)
		return
	}

	delay := e.cfg.delayForAttempt(attempt)
	en.earliestProcessingTimeAnchor = e.ts.now()
	en.earliestProcessingTimeDelay = delay.Milliseconds()
	e.emit(Event{Kind: EventRequestAttemptFailedDecision, RequestID: en.id.String(), Detail: "retry"})
	e.enqueueMain(en)
}
