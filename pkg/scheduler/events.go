package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
)

// EventKind enumerates the fixed event vocabulary the engine emits.
type EventKind string

const (
	EventRequestAdded              EventKind = "requestAdded"
	EventRequestExecuting          EventKind = "requestExecuting"
	EventRequestSuccess            EventKind = "requestSuccess"
	EventRequestAttemptFailed      EventKind = "requestAttemptFailed"
	EventRequestAttemptFailedDecision EventKind = "requestAttemptFailedDecision"
	EventRequestFinalFailure        EventKind = "requestFinalFailure"
	EventRequestFinalTimeout        EventKind = "requestFinalTimeout"
	EventRequestCancelled           EventKind = "requestCancelled"
	EventRequestRemoved             EventKind = "requestRemoved"

	EventMainQueueDecision              EventKind = "mainQueueDecision"
	EventMainQueueThreadObtainAttempt    EventKind = "mainQueueThreadObtainAttempt"
	EventMainQueueTicketObtainAttempt    EventKind = "mainQueueTicketObtainAttempt"
	EventMainQueueProcessingCompleted    EventKind = "mainQueueProcessingCompleted"

	EventDelayQueueItemBeforeDelayStep     EventKind = "delayQueueItemBeforeDelayStep"
	EventDelayQueueDecisionAfterDelayStep  EventKind = "delayQueueDecisionAfterDelayStep"

	EventErrorAssertionError                    EventKind = "errorAssertionError"
	EventErrorRequestRejected                    EventKind = "errorRequestRejected"
	EventErrorSpiMethodException                 EventKind = "errorSpiMethodException"
	EventErrorEventListenerMethodException       EventKind = "errorEventListenerMethodException"
	EventErrorUnexpectedInterruptedException     EventKind = "errorUnexpectedInterruptedException"
	EventErrorUnexpectedRuntimeException         EventKind = "errorUnexpectedRuntimeException"
	EventErrorShutdownSpooldownNotAchieved       EventKind = "errorShutdownSpooldownNotAchieved"

	EventServiceControlStateChanged EventKind = "serviceControlStateChanged"
)

// Event is the payload delivered to every Listener callback. Not every
// field is populated for every Kind.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	RequestID         string
	AttemptNumber     int
	Cause             error
	TotalProcessing   time.Duration
	QueueSize         int
	RemainingInFlight int64
	ControlState      ControlState
	Detail            string
}

// Listener receives every event the engine emits. A Listener
// implementation's own panics/errors are caught by the engine and
// reported via errorEventListenerMethodException to a last-resort
// listener; that listener's own failures are tolerated silently.
type Listener interface {
	OnEvent(Event)
}

// ListenerFunc adapts a plain function to Listener.
type ListenerFunc func(Event)

func (f ListenerFunc) OnEvent(e Event) { f(e) }

// loggingListener is the default Listener, logging every event at Debug
// (routine lifecycle events) or Warn (error-* events) via zap, matching
// the structured, component-named logging convention used throughout
// this codebase.
type loggingListener struct {
	log *zap.SugaredLogger
}

func newLoggingListener() *loggingListener {
	return &loggingListener{log: zap.S().Named("scheduler_events")}
}

func (l *loggingListener) OnEvent(e Event) {
	fields := []any{"kind", e.Kind}
	if e.RequestID != "" {
		fields = append(fields, "requestID", e.RequestID)
	}
	if e.AttemptNumber > 0 {
		fields = append(fields, "attempt", e.AttemptNumber)
	}
	if e.Cause != nil {
		fields = append(fields, "cause", e.Cause)
	}
	if e.Detail != "" {
		fields = append(fields, "detail", e.Detail)
	}

	switch e.Kind {
	case EventErrorAssertionError, EventErrorSpiMethodException, EventErrorEventListenerMethodException,
		EventErrorUnexpectedInterruptedException, EventErrorUnexpectedRuntimeException,
		EventErrorShutdownSpooldownNotAchieved, EventErrorRequestRejected:
		l.log.Warnw(string(e.Kind), fields...)
	default:
		l.log.Debugw(string(e.Kind), fields...)
	}
}

// multiListener fans a single OnEvent call out to several listeners,
// isolating each call so one listener's panic cannot take down another.
type multiListener struct {
	listeners []Listener
	lastResort Listener
}

func (m *multiListener) OnEvent(e Event) {
	for _, l := range m.listeners {
		m.safeDispatch(l, e)
	}
}

func (m *multiListener) safeDispatch(l Listener, e Event) {
	defer func() {
		if r := recover(); r != nil {
			m.reportListenerFailure(l, e, r)
		}
	}()
	l.OnEvent(e)
}

func (m *multiListener) reportListenerFailure(_ Listener, e Event, recovered any) {
	defer func() {
		// last resort itself is tolerated: a panic here is swallowed.
		_ = recover()
	}()
	if m.lastResort == nil {
		return
	}
	m.lastResort.OnEvent(Event{
		Kind:      EventErrorEventListenerMethodException,
		Timestamp: e.Timestamp,
		Detail:    e.Kind.String() + " listener panicked",
		Cause:     panicToError(recovered),
	})
}

func (k EventKind) String() string { return string(k) }

func panicToError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &panicError{value: r}
}

type panicError struct{ value any }

func (p *panicError) Error() string { return "panic: " + toString(p.value) }

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return "non-string panic value"
}

// Hooks is the Policies/Hooks bundle replacing subclass-style
// overridable SPI methods. Every field is
// optional; nil fields are no-ops. Hooks fire after the corresponding
// event has already been dispatched to Listeners. A hook that panics
// does not take down the caller's goroutine: the engine recovers it,
// reports it, and counts it against the relevant fault limit.
type Hooks struct {
	AfterRequestAdded          func(requestID string)
	AfterRequestRemoved        func(requestID string)
	AfterRequestSuccess        func(requestID string, attempt int)
	AfterRequestFinalFailure   func(requestID string, cause error)
	AfterRequestFinalTimeout   func(requestID string, totalProcessing time.Duration)
	AfterRequestCancelled      func(requestID string)
}

func (e *Engine) callAfterRequestAdded(id string) {
	e.callHookSafely(func() {
		if e.hooks.AfterRequestAdded != nil {
			e.hooks.AfterRequestAdded(id)
		}
	})
}

func (e *Engine) callAfterRequestRemoved(id string) {
	e.callHookSafely(func() {
		if e.hooks.AfterRequestRemoved != nil {
			e.hooks.AfterRequestRemoved(id)
		}
	})
}

func (e *Engine) callAfterRequestSuccess(id string, attempt int) {
	e.callHookSafely(func() {
		if e.hooks.AfterRequestSuccess != nil {
			e.hooks.AfterRequestSuccess(id, attempt)
		}
	})
}

func (e *Engine) callAfterRequestFinalFailure(id string, cause error) {
	e.callHookSafely(func() {
		if e.hooks.AfterRequestFinalFailure != nil {
			e.hooks.AfterRequestFinalFailure(id, cause)
		}
	})
}

func (e *Engine) callAfterRequestFinalTimeout(id string, total time.Duration) {
	e.callHookSafely(func() {
		if e.hooks.AfterRequestFinalTimeout != nil {
			e.hooks.AfterRequestFinalTimeout(id, total)
		}
	})
}

func (e *Engine) callAfterRequestCancelled(id string) {
	e.callHookSafely(func() {
		if e.hooks.AfterRequestCancelled != nil {
			e.hooks.AfterRequestCancelled(id)
		}
	})
}

// callHookSafely runs a single hook invocation, recovering any panic so
// a misbehaving caller-supplied hook cannot crash the main loop or a
// worker goroutine. A context.Canceled/CancellationError panic value is
// reported as an interrupted fault; everything else as an unexpected
// one. Every hook call that completes without a panic resets both
// consecutive counts; once either count exceeds its configured limit,
// further hooks are skipped entirely.
func (e *Engine) callHookSafely(fn func()) {
	if e.spiUnexpectedFaults.Load() > int64(e.cfg.MainQueueUnexpectedExceptionLimit) ||
		e.spiInterruptedFaults.Load() > int64(e.cfg.MainQueueInterruptedExceptionLimit) {
		return
	}

	defer func() {
		r := recover()
		if r == nil {
			e.spiUnexpectedFaults.Store(0)
			e.spiInterruptedFaults.Store(0)
			return
		}

		cause := panicToError(r)
		if isInterruptionCause(cause) {
			n := e.spiInterruptedFaults.Add(1)
			e.emit(Event{Kind: EventErrorUnexpectedInterruptedException, Cause: cause, Detail: "hook invocation interrupted"})
			if n > int64(e.cfg.MainQueueInterruptedExceptionLimit) {
				e.emit(Event{Kind: EventErrorAssertionError, Detail: "hooks exceeded their interrupted-exception limit; further hook invocations suppressed"})
			}
			return
		}

		n := e.spiUnexpectedFaults.Add(1)
		e.emit(Event{Kind: EventErrorSpiMethodException, Cause: cause, Detail: "hook invocation panicked"})
		if n > int64(e.cfg.MainQueueUnexpectedExceptionLimit) {
			e.emit(Event{Kind: EventErrorAssertionError, Detail: "hooks exceeded their unexpected-exception limit; further hook invocations suppressed"})
		}
	}()

	fn()
}

func isInterruptionCause(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var cancelled *rrlerrors.CancellationError
	return errors.As(err, &cancelled)
}
