package scheduler

import (
	"time"

	rrlerrors "github.com/arrowlabs/rrlsched/pkg/errors"
)

// ShutdownFor is ShutdownUntil(now + limit).
func (e *Engine) ShutdownFor(limit time.Duration) error {
	return e.ShutdownUntil(e.ts.now().Add(limit))
}

// ShutdownNow shuts down without waiting for in-flight work to drain.
func (e *Engine) ShutdownNow() error {
	return e.ShutdownUntil(e.ts.now())
}

// ShutdownUntil drives the drain sequence: move to
// ShutdownInProgress with a spooldown target that reserves
// shutdownBufferTimePerc of the budget for finalization, wait for the
// queue to drain, then stop the background goroutines and the worker
// pool and move to the terminal Shutdown state. Requests that have not
// reached a worker when the spooldown target is missed are abandoned:
// their futures never settle, which is why Future.Get takes its own
// timeout. Attempts already running in a worker are waited for by the
// pool shutdown and their outcome is handled as usual.
func (e *Engine) ShutdownUntil(deadline time.Time) error {
	e.lifecycleMu.Lock()
	cs := e.getControlState()

	switch {
	case cs.isShutdown():
		e.lifecycleMu.Unlock()
		return rrlerrors.NewIllegalStateError(cs.Description, ShutdownInProgress.Description)
	case cs.Description == ShutdownInProgress.Description:
		e.lifecycleMu.Unlock()
		return rrlerrors.NewIllegalStateError(cs.Description, ShutdownInProgress.Description)
	case cs.isNotStarted():
		e.setControlState(Shutdown)
		e.lifecycleMu.Unlock()
		return nil
	}

	now := e.ts.now()
	totalVirtual := e.ts.gapVirtual(now, deadline)
	if totalVirtual < 0 {
		totalVirtual = 0
	}
	bufferVirtual := totalVirtual * int64(e.cfg.ShutdownBufferTimePerc) / 100
	internalTargetVirtual := totalVirtual - bufferVirtual
	internalTarget := e.ts.addVirtualToReal(now, internalTargetVirtual)

	inProgress := ShutdownInProgress
	inProgress.SpooldownTargetTimestamp = internalTarget
	e.setControlState(inProgress)
	e.lifecycleMu.Unlock()

	if remaining := e.spooldown(internalTarget); remaining > 0 {
		e.emit(Event{
			Kind:              EventErrorShutdownSpooldownNotAchieved,
			RemainingInFlight: remaining,
			Detail:            "requests remained in flight past the spooldown target",
		})
	}

	close(e.closeCh)
	e.wg.Wait()
	e.pool.ShutdownNow()

	e.shutdownOnce.Do(func() {
		e.setControlState(Shutdown)
	})

	return nil
}

// spooldown polls inFlight until it reaches zero or deadline passes,
// sleeping in maxSleepTime-bounded chunks so it stays responsive to a
// shrinking deadline measured in virtual time. It returns the number of
// requests still in flight when it stopped polling (zero means the
// drain fully succeeded).
func (e *Engine) spooldown(deadline time.Time) int64 {
	for {
		n := e.inFlight.Load()
		if n == 0 {
			return 0
		}

		remaining := deadline.Sub(e.ts.now())
		if remaining <= 0 {
			return n
		}

		chunk := remaining
		if e.cfg.MaxSleepTime > 0 && chunk > e.cfg.MaxSleepTime {
			chunk = e.cfg.MaxSleepTime
		}

		timer := time.NewTimer(chunk)
		<-timer.C
		timer.Stop()
	}
}
