package scheduler

// handleSuccess, handleFinalFailure, handleTimeout and handleCancel are
// the only four places an entry's future is settled and its in-flight
// slot released. Every one of them emits its own requestX event followed
// by requestRemoved.

func (e *Engine) handleSuccess(en *entry, value any, attempt int) {
	en.future.settle(outcome[any]{
		kind:            outcomeSuccess,
		value:           value,
		attempt:         attempt,
		totalProcessing: en.totalProcessingTime,
	}, e.onDoubleSettle(en))

	e.emit(Event{Kind: EventRequestSuccess, RequestID: en.id.String(), AttemptNumber: attempt, TotalProcessing: en.totalProcessingTime})
	e.callAfterRequestSuccess(en.id.String(), attempt)
	e.finishEntry(en)
}

func (e *Engine) handleFinalFailure(en *entry, cause error, attempt int) {
	en.future.settle(outcome[any]{
		kind:            outcomeExecutionError,
		cause:           cause,
		attempt:         attempt,
		totalProcessing: en.totalProcessingTime,
	}, e.onDoubleSettle(en))

	e.emit(Event{Kind: EventRequestFinalFailure, RequestID: en.id.String(), AttemptNumber: attempt, Cause: cause})
	e.callAfterRequestFinalFailure(en.id.String(), cause)
	e.finishEntry(en)
}

func (e *Engine) handleTimeout(en *entry) {
	en.future.settle(outcome[any]{
		kind:            outcomeTimeout,
		totalProcessing: en.totalProcessingTime,
	}, e.onDoubleSettle(en))

	e.emit(Event{Kind: EventRequestFinalTimeout, RequestID: en.id.String(), TotalProcessing: en.totalProcessingTime})
	e.callAfterRequestFinalTimeout(en.id.String(), en.totalProcessingTime)
	e.finishEntry(en)
}

func (e *Engine) handleCancel(en *entry) {
	en.future.settle(outcome[any]{
		kind: outcomeCancelled,
	}, e.onDoubleSettle(en))

	e.emit(Event{Kind: EventRequestCancelled, RequestID: en.id.String()})
	e.callAfterRequestCancelled(en.id.String())
	e.finishEntry(en)
}

// onDoubleSettle reports the impossible-in-theory condition of a second
// terminal handler trying to settle an entry's future with a different
// outcome.
func (e *Engine) onDoubleSettle(en *entry) func() {
	return func() {
		e.emit(Event{Kind: EventErrorAssertionError, RequestID: en.id.String(), Detail: "future settled more than once"})
	}
}

func (e *Engine) finishEntry(en *entry) {
	e.inFlight.Add(-1)
	e.emit(Event{Kind: EventRequestRemoved, RequestID: en.id.String(), QueueSize: e.queueDepth()})
	e.callAfterRequestRemoved(en.id.String())
}
