// Package scheduler implements an async retry-and-rate-limit (RRL)
// request scheduler: a single bounded pipeline that retries failed
// attempts with configurable per-attempt backoff, caps concurrency
// through a worker pool, and throttles dispatch through a shared rate
// limiter, all driven by one main-loop goroutine.
//
// # Architecture Overview
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                              Engine                                  │
//	│                                                                       │
//	│   SubmitFor(input) ──► main queue ──► mainLoop() ──► worker pool      │
//	│                           ▲   │         │  │                         │
//	│                  requeue  │   │ DELAY(d) │  └─► processor(input)      │
//	│                           │   ▼         │           │                │
//	│                   ┌───────┴───────┐     │  ticket   ▼                │
//	│                   │ delay tiers   │     └─◄──── rate limiter         │
//	│                   │ 100ms 1s 10s  │                │                 │
//	│                   └───────────────┘        terminal handler          │
//	│                                                     │                │
//	│                                           Future[any] settled        │
//	└─────────────────────────────────────────────────────────────────────┘
//
// # Core Components
//
// Engine:
//   - Owns one main queue and a fixed ladder of delay-queue tiers
//   - Runs exactly one main-loop goroutine (mainLoop) dispatching entries
//   - Drives a pluggable workerpool.Pool and ratelimiter.Limiter
//   - Exposes a fixed control-state machine governing admission and drain
//
// Entry:
//   - Per-submission mutable state, owned by exactly one goroutine at a
//     time: submitting caller, then main loop, then at most one delay
//     tier, then a worker (see entry.go) — no per-entry lock is needed
//
// Future:
//   - Single-assignment result handle with four terminal states:
//     success, cancelled, timed out, or failed after exhausting attempts
//
// # Submission flow
//
//  1. Caller calls SubmitFor(input, validity) (or a *Until/*WithDelay* variant)
//     │
//     ▼
//  2. submit() validates arguments, runs mayAcceptRequest(), builds an
//     entry carrying a fresh Future, and pushes it onto the main queue
//     │
//     ▼
//  3. mainLoop() receives the entry and computes a decision: TIMEOUT,
//     CANCEL, DELAY(remaining), or PROCEED(remainingValidity)
//     │
//     ▼
//  4. On PROCEED, the loop acquires a worker and a rate-limiter ticket
//     (bounded waits, capped by maxSleepTime and any active spooldown
//     budget) and hands the entry to the worker through a rendezvous
//     channel
//     │
//     ▼
//  5. The worker calls processor(input); success settles the Future
//     directly. Failure runs the retry decision (worker.go): out of
//     attempts settles as a final failure, then out of validity (or a
//     control state with TimeoutRequestsAfterFailedAttempt) settles as a
//     timeout, otherwise the entry is requeued with a fresh per-attempt
//     delay anchor so the next mainLoop decision routes it through a
//     delay tier.
//
// # Delay queue
//
// Each tier in DelayQueues is a bucketed FIFO served by one goroutine
// (delayqueue.go). An entry sleeps in chunks bounded by maxSleepTime,
// periodically re-checking whether its remaining delay now fits a
// shorter tier or has elapsed; on any failure inside a tier's worker the
// entry is always re-enqueued to the main queue, never back into a
// delay tier, so no entry can be dropped by a tier panic.
//
// # Shutdown
//
// ShutdownFor/ShutdownUntil (shutdown.go) move the engine to
// ShutdownInProgress with a spooldown target that reserves
// shutdownBufferTimePerc of the requested budget for finalization, poll
// the in-flight count down to zero (or emit
// errorShutdownSpooldownNotAchieved if the target is missed), then stop
// the main loop and delay tiers, shut down the worker pool, and move to
// the terminal Shutdown state. A request that has not reached a worker
// when the target is missed is abandoned: its Future never settles,
// which is why Future.Get takes its own timeout. An attempt already
// running in a worker is waited for by the pool shutdown, and its
// outcome is handled as usual.
package scheduler
