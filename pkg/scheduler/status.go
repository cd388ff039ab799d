package scheduler

import "time"

// ConfigSnapshot is the projection of Config a Status consumer needs to
// reason about the numbers it sees, without exposing the full Config
// (and its validation/options machinery) as part of the status surface.
type ConfigSnapshot struct {
	ServiceName                       string
	MaxAttempts                       int
	MaxPendingRequests                int
	DelayQueues                       []time.Duration
	RequestProcessingThreadPoolConfig ThreadPoolConfig
	RateLimiterBucketSize             int64
	RateLimiterRefillRate             int64
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	ControlState      string
	AcceptingRequests bool

	QueueSize        int
	InFlightRequests int64
	ActiveWorkers    int
	AvailableTickets int64

	MainLoopAlive   bool
	DelayTiersAlive []bool
	WorkerPoolAlive bool
	EverythingAlive bool

	Config ConfigSnapshot

	GeneratedAt time.Time
}

// GetStatus returns a Status snapshot, reusing the previous one if it
// was generated within maxAgeVirtualMs of now (converted to real time),
// so a status dashboard polling faster than the virtual clock ticks
// does not pay the queueDepth() scan on every call. maxAgeVirtualMs <= 0
// always recomputes.
func (e *Engine) GetStatus(maxAgeVirtualMs int64) Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()

	now := e.ts.now()
	if maxAgeVirtualMs > 0 && !e.cachedAtReal.IsZero() {
		maxAge := e.ts.realInterval(maxAgeVirtualMs)
		if now.Sub(e.cachedAtReal) < maxAge {
			return e.cachedStatus
		}
	}

	cs := e.getControlState()

	tiersAlive := make([]bool, len(e.tiers))
	allTiersAlive := true
	for i, t := range e.tiers {
		tiersAlive[i] = t.alive()
		allTiersAlive = allTiersAlive && tiersAlive[i]
	}

	mainLoopAlive := e.isMainLoopAlive()
	poolAlive := e.pool.IsAlive()

	s := Status{
		ControlState:      cs.Description,
		AcceptingRequests: !cs.rejectsRequests(),

		QueueSize:        e.queueDepth(),
		InFlightRequests: e.inFlight.Load(),
		ActiveWorkers:    e.pool.ActiveCount(),
		AvailableTickets: e.limiter.AvailableTicketsEstimation(),

		MainLoopAlive:   mainLoopAlive,
		DelayTiersAlive: tiersAlive,
		WorkerPoolAlive: poolAlive,
		EverythingAlive: mainLoopAlive && allTiersAlive && poolAlive,

		Config: ConfigSnapshot{
			ServiceName:                       e.cfg.ServiceName,
			MaxAttempts:                       e.cfg.MaxAttempts,
			MaxPendingRequests:                e.cfg.MaxPendingRequests,
			DelayQueues:                       e.cfg.DelayQueues,
			RequestProcessingThreadPoolConfig: e.cfg.RequestProcessingThreadPoolConfig,
			RateLimiterBucketSize:             e.cfg.RateLimiterBucketSize,
			RateLimiterRefillRate:             e.cfg.RateLimiterRefillRate,
		},

		GeneratedAt: now,
	}

	e.cachedStatus = s
	e.cachedAtReal = now
	return s
}

// isMainLoopAlive reports whether the main-loop goroutine is still
// running. It is false both before Start is ever called (mainLoopDone
// has not been allocated yet) and after the loop has returned.
func (e *Engine) isMainLoopAlive() bool {
	if e.mainLoopDone == nil {
		return false
	}
	select {
	case <-e.mainLoopDone:
		return false
	default:
		return true
	}
}
