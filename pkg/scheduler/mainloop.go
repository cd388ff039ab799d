package scheduler

import (
	"context"
	"time"

	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
	"github.com/arrowlabs/rrlsched/pkg/ratelimiter"
	"github.com/arrowlabs/rrlsched/pkg/workerpool"
)

type decisionKind int

const (
	decisionTimeout decisionKind = iota
	decisionCancel
	decisionDelay
	decisionProceed
)

type mainLoopDecision struct {
	kind                decisionKind
	delayMs             int64
	remainingValidityMs int64
}

// decide implements the main-loop decision rule.
func (e *Engine) decide(en *entry, hadPriorResourceFailure bool) mainLoopDecision {
	cs := e.getControlState()

	if cs.TimeoutAllPendingRequests || (cs.TimeoutRequestsAfterFailedAttempt && hadPriorResourceFailure) {
		return mainLoopDecision{kind: decisionTimeout}
	}

	remainingValidity := en.requestValidityDuration - e.ts.gapVirtual(en.createdAt, e.ts.now())
	if remainingValidity <= 0 {
		return mainLoopDecision{kind: decisionTimeout}
	}

	if en.future.isCancelRequested() {
		return mainLoopDecision{kind: decisionCancel}
	}

	var remainingDelay int64
	if en.hasDelayAnchor() {
		remainingDelay = en.earliestProcessingTimeDelay - e.ts.gapVirtual(en.earliestProcessingTimeAnchor, e.ts.now())
	}

	if remainingDelay > e.cfg.RequestEarlyProcessingGracePeriod.Milliseconds() && !cs.IgnoreDelays {
		return mainLoopDecision{kind: decisionDelay, delayMs: remainingDelay}
	}

	en.clearDelayAnchor()
	return mainLoopDecision{kind: decisionProceed, remainingValidityMs: remainingValidity}
}

// mainLoop is the dispatch loop: exactly one goroutine runs this.
func (e *Engine) mainLoop() {
	defer close(e.mainLoopDone)

	consecutiveFaults := 0

	for {
		var en *entry
		select {
		case en = <-e.mainQueue:
		case <-e.closeCh:
			return
		}

		if err := e.runIterationSafely(en); err != nil {
			consecutiveFaults++
			e.emit(Event{Kind: EventErrorUnexpectedRuntimeException, Timestamp: e.ts.now(), Cause: err})
			if consecutiveFaults > e.cfg.MainQueueRuntimeExceptionLimit {
				e.emit(Event{Kind: EventErrorAssertionError, Timestamp: e.ts.now(), Detail: "main loop exceeded its exception limit; thread exiting"})
				return
			}
			continue
		}
		consecutiveFaults = 0
	}
}

func (e *Engine) runIterationSafely(en *entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rrlerrors.NewAssertionError("panic in main loop iteration")
			// an entry that panicked mid-iteration must not be silently
			// dropped: best-effort put it back on the main queue.
			e.enqueueMain(en)
		}
	}()

	e.runIteration(en)
	return nil
}

func (e *Engine) runIteration(en *entry) {
	hadPriorResourceFailure := false

	d := e.decide(en, hadPriorResourceFailure)
	e.emit(Event{Kind: EventMainQueueDecision, Timestamp: e.ts.now(), RequestID: en.id.String(), Detail: decisionName(d.kind)})

	if d.kind != decisionProceed {
		e.dispatchDecision(en, d)
		return
	}

	e.proceed(en, d.remainingValidityMs)
}

// dispatchDecision handles every non-PROCEED decision outcome. It is
// shared between the normal per-iteration dispatch and the re-decide
// step run after a resource or handoff failure.
func (e *Engine) dispatchDecision(en *entry, d mainLoopDecision) {
	switch d.kind {
	case decisionTimeout:
		e.handleTimeout(en)
	case decisionCancel:
		e.handleCancel(en)
	case decisionDelay:
		e.placeInDelayQueue(en, d.delayMs)
	default:
		e.enqueueMain(en)
	}
}

func decisionName(k decisionKind) string {
	switch k {
	case decisionTimeout:
		return "TIMEOUT"
	case decisionCancel:
		return "CANCEL"
	case decisionDelay:
		return "DELAY"
	default:
		return "PROCEED"
	}
}

// proceed implements resource acquisition and handoff for a PROCEED
// decision.
func (e *Engine) proceed(en *entry, remainingValidityMs int64) {
	cs := e.getControlState()

	spooldownCap, hasSpooldownCap := e.spooldownPerItemCap(cs)

	workerWait := e.ts.realInterval(remainingValidityMs)
	if e.cfg.MaxSleepTime > 0 && workerWait > e.cfg.MaxSleepTime {
		workerWait = e.cfg.MaxSleepTime
	}
	if hasSpooldownCap && cs.LimitWaitingForProcessingThread && spooldownCap < workerWait {
		workerWait = spooldownCap
	}

	ready, slot, future, ok := e.acquireWorker(workerWait)
	e.emit(Event{Kind: EventMainQueueThreadObtainAttempt, Timestamp: e.ts.now(), RequestID: en.id.String(), Detail: boolDetail(ok)})
	if !ok {
		e.releaseAndRequeueOrTimeout(en, nil, ratelimiter.Ticket{}, false)
		return
	}

	ticketWait := workerWait
	if hasSpooldownCap && cs.LimitWaitingForTicket && spooldownCap < ticketWait {
		ticketWait = spooldownCap
	}

	ticket, haveTicket := e.acquireTicket(cs, ticketWait)
	e.emit(Event{Kind: EventMainQueueTicketObtainAttempt, Timestamp: e.ts.now(), RequestID: en.id.String(), Detail: boolDetail(haveTicket)})
	if !haveTicket {
		e.releaseAndRequeueOrTimeout(en, future, ratelimiter.Ticket{}, false)
		return
	}

	if !e.handoff(en, ready, slot, future.handoverCtx()) {
		e.emit(Event{Kind: EventErrorAssertionError, Timestamp: e.ts.now(), RequestID: en.id.String(), Detail: "handoff deadline exceeded"})
		e.releaseAndRequeueOrTimeout(en, future, ticket, true)
		return
	}

	e.emit(Event{Kind: EventMainQueueProcessingCompleted, Timestamp: e.ts.now(), RequestID: en.id.String()})
}

func boolDetail(ok bool) string {
	if ok {
		return "acquired"
	}
	return "failed"
}

// spooldownPerItemCap computes the once-per-iteration wait cap described
// once a spooldown target is active.
func (e *Engine) spooldownPerItemCap(cs ControlState) (time.Duration, bool) {
	if !cs.hasSpooldownTarget() {
		return 0, false
	}
	remaining := cs.SpooldownTargetTimestamp.Sub(e.ts.now())
	if remaining < 0 {
		remaining = 0
	}
	total := e.queueDepth() + 1
	return remaining / time.Duration(total), true
}

func (e *Engine) queueDepth() int {
	depth := len(e.mainQueue)
	for _, t := range e.tiers {
		depth += len(t.in)
	}
	return depth
}

type workerHandoff struct {
	poolFuture workerpool.PoolFuture
	ctx        context.Context
	cancel     context.CancelFunc
}

func (w *workerHandoff) handoverCtx() context.Context { return w.ctx }

// acquireWorker submits a rendezvous task to the worker pool and waits
// for its ready sentinel, bounded by wait.
func (e *Engine) acquireWorker(wait time.Duration) (readyCh <-chan struct{}, slotCh chan *entry, handoff *workerHandoff, ok bool) {
	ready := make(chan struct{}, 1)
	slot := make(chan *entry, 1)
	ctx, cancel := context.WithCancel(context.Background())

	pf := e.pool.Submit(func(taskCtx context.Context) {
		select {
		case ready <- struct{}{}:
		case <-taskCtx.Done():
			return
		}
		select {
		case en := <-slot:
			e.runAttempt(taskCtx, en)
		case <-taskCtx.Done():
			return
		}
	})

	h := &workerHandoff{poolFuture: pf, ctx: ctx, cancel: cancel}

	select {
	case <-ready:
		return ready, slot, h, true
	case <-time.After(wait):
		pf.Cancel()
		cancel()
		return nil, nil, nil, false
	case <-e.closeCh:
		pf.Cancel()
		cancel()
		return nil, nil, nil, false
	}
}

// acquireTicket drives the rate limiter honouring control-state
// wait-for-tickets semantics.
func (e *Engine) acquireTicket(cs ControlState, wait time.Duration) (ratelimiter.Ticket, bool) {
	switch cs.WaitForTickets {
	case IgnoreEntirely:
		return ratelimiter.Ticket{}, true
	case DoNotWait:
		wait = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.closeCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return e.limiter.ObtainTicket(ctx, wait)
}

// handoff sends the entry through the rendezvous slot, bounded by
// mainQueueMaxRequestHandoverWaitTime.
func (e *Engine) handoff(en *entry, _ <-chan struct{}, slot chan *entry, ctx context.Context) bool {
	select {
	case slot <- en:
		return true
	case <-time.After(e.cfg.MainQueueMaxRequestHandoverWaitTime):
		return false
	case <-ctx.Done():
		return false
	}
}

// releaseAndRequeueOrTimeout implements the "Requeueing" rule: release
// any held ticket/worker, then either short-circuit to TIMEOUT (if the
// control state says so) or put the entry back on the main queue.
func (e *Engine) releaseAndRequeueOrTimeout(en *entry, h *workerHandoff, ticket ratelimiter.Ticket, ticketHeld bool) {
	if h != nil {
		h.poolFuture.Cancel()
		h.cancel()
	}
	if ticketHeld {
		e.limiter.ReturnUnusedTicket(ticket)
	}

	d := e.decide(en, true)
	if d.kind == decisionProceed {
		// Requeueing: a resource/handoff failure on an otherwise-PROCEED
		// decision goes back on the main queue rather than retrying
		// acquisition in a tight loop, so other entries get a turn.
		e.enqueueMain(en)
		return
	}

	e.dispatchDecision(en, d)
}

func (e *Engine) enqueueMain(en *entry) {
	select {
	case e.mainQueue <- en:
	case <-e.closeCh:
		// engine is shutting down; still avoid dropping the entry: force
		// the send through so spooldown can account for it.
		e.mainQueue <- en
	}
}
