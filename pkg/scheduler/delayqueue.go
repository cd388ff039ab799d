package scheduler

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// delayTier is one bucketed FIFO of the delay-queue subsystem: a
// nominal delay and a channel-backed queue served by exactly one worker
// goroutine.
type delayTier struct {
	delayMs          int64
	in               chan *entry
	engine           *Engine
	log              *zap.SugaredLogger
	consecutiveFaults int
	inoperable       atomic.Bool
}

// alive reports whether the tier is still draining its channel. It
// only turns false once the tier has exited early after exceeding
// DelayQueueUnexpectedExceptionLimit; an intentional shutdown is
// reported through Status.MainLoopAlive/EverythingAlive instead.
func (t *delayTier) alive() bool {
	return !t.inoperable.Load()
}

func newDelayTier(delayMs int64, capacity int, e *Engine) *delayTier {
	return &delayTier{
		delayMs: delayMs,
		in:      make(chan *entry, capacity),
		engine:  e,
		log:     zap.S().Named("scheduler_delayqueue").With("tierDelayMs", delayMs),
	}
}

// selectDelayTier picks the highest-delay tier whose delayMs is within
// grace of the desired delay d; if none qualifies, the shortest tier is
// used.
func (e *Engine) selectDelayTier(d int64) *delayTier {
	grace := e.cfg.DelayQueueTooLongGracePeriod.Milliseconds()

	var best *delayTier
	for _, t := range e.tiers {
		if t.delayMs <= d+grace {
			if best == nil || t.delayMs > best.delayMs {
				best = t
			}
		}
	}
	if best == nil {
		return e.tiers[0]
	}
	return best
}

// placeInDelayQueue implements the DELAY(d) outcome of the main-loop
// decision: select a tier and push the entry onto it.
func (e *Engine) placeInDelayQueue(en *entry, d int64) {
	now := e.ts.now()
	en.delayAnchor = now
	en.delayFor = d
	en.inDelayQueueSince = now

	tier := e.selectDelayTier(d)
	select {
	case tier.in <- en:
	default:
		// tier channel saturated (shouldn't happen: capacity ==
		// maxPendingRequests); fall back to blocking send so no entry is
		// dropped.
		tier.in <- en
	}
}

// run is the tier worker loop. It exits early if process reports the
// tier has exceeded its consecutive-fault budget and become inoperable,
// matching the main loop's own fault-limit behaviour.
func (t *delayTier) run(closeCh <-chan struct{}) {
	for {
		var en *entry
		select {
		case en = <-t.in:
		case <-closeCh:
			return
		}

		if !t.process(en) {
			return
		}
	}
}

// process runs one entry through the tier and returns false if the
// tier's consecutive panic-recovery count exceeded
// DelayQueueUnexpectedExceptionLimit, signalling run to stop this
// tier's goroutine rather than recover forever.
func (t *delayTier) process(en *entry) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			// Consistency: on any exception path re-enqueue onto the
			// MAIN queue, never back into this tier, so no entry is
			// dropped.
			t.log.Errorw("recovered panic in delay tier worker", "panic", r)
			en.inDelayQueueSince = time.Time{}
			t.engine.enqueueMain(en)

			t.consecutiveFaults++
			t.engine.emit(Event{Kind: EventErrorUnexpectedRuntimeException, Cause: panicToError(r), Detail: "delay tier worker"})
			if t.consecutiveFaults > t.engine.cfg.DelayQueueUnexpectedExceptionLimit {
				t.engine.emit(Event{Kind: EventErrorAssertionError, Detail: "delay tier exceeded its exception limit; tier exiting"})
				t.inoperable.Store(true)
				ok = false
			}
		}
	}()

	e := t.engine
	e.emit(Event{Kind: EventDelayQueueItemBeforeDelayStep, Timestamp: e.ts.now(), RequestID: en.id.String()})

	for {
		remainingDelay := en.delayFor - e.ts.gapVirtual(en.delayAnchor, e.ts.now())
		allowed := t.delayMs - e.ts.gapVirtual(en.inDelayQueueSince, e.ts.now())

		sleepVirtual := remainingDelay
		if allowed < sleepVirtual {
			sleepVirtual = allowed
		}

		if sleepVirtual > 0 {
			if !e.boundedSleep(e.ts.realInterval(sleepVirtual), e.isIgnoreDelays) {
				// control state flipped to ignore-delays mid-sleep, or
				// shutdown interrupted us; fall through to re-evaluate.
			}
		}

		remainingDelay = en.delayFor - e.ts.gapVirtual(en.delayAnchor, e.ts.now())

		if remainingDelay < t.delayMs || e.isIgnoreDelays() {
			e.emit(Event{Kind: EventDelayQueueDecisionAfterDelayStep, Timestamp: e.ts.now(), RequestID: en.id.String(), Detail: "toMainQueue"})
			en.inDelayQueueSince = time.Time{}
			e.enqueueMain(en)
			t.consecutiveFaults = 0
			return
		}

		en.inDelayQueueSince = e.ts.now()
		e.emit(Event{Kind: EventDelayQueueDecisionAfterDelayStep, Timestamp: e.ts.now(), RequestID: en.id.String(), Detail: "requeueTier"})
		select {
		case t.in <- en:
		default:
			t.in <- en
		}
		t.consecutiveFaults = 0
		return
	}
}

// boundedSleep sleeps for d (capped by maxSleepTime, chunked), returning
// early if abort() becomes true or the engine is closing. It returns
// true if the full duration elapsed without early abort.
func (e *Engine) boundedSleep(d time.Duration, abort func() bool) bool {
	deadline := e.ts.now().Add(d)
	for {
		remaining := deadline.Sub(e.ts.now())
		if remaining <= 0 {
			return true
		}
		if abort != nil && abort() {
			return false
		}

		chunk := remaining
		if e.cfg.MaxSleepTime > 0 && chunk > e.cfg.MaxSleepTime {
			chunk = e.cfg.MaxSleepTime
		}

		timer := time.NewTimer(chunk)
		select {
		case <-timer.C:
		case <-e.closeCh:
			timer.Stop()
			return false
		}
	}
}

func (e *Engine) isIgnoreDelays() bool {
	return e.getControlState().IgnoreDelays
}
