// Package ratelimiter defines the ticket-based admission-control contract
// consumed by the scheduler engine, plus two reference implementations:
// Unlimited and TokenBucket.
package ratelimiter

import (
	"context"
	"time"
)

// Ticket is an abstract admission token issued by a Limiter. It is
// comparable so a Limiter can recognise a returned ticket by value; a
// ticket it never issued is ignored on return.
type Ticket struct {
	id uint64
}

// Limiter is the rate-limiter contract the engine drives. Implementations
// must be safe for concurrent use.
type Limiter interface {
	// ObtainTicket blocks up to maxWait for a ticket to become available.
	// It may return a zero Ticket and false before maxWait elapses if it
	// can determine none will become available in time. The engine makes
	// a single call per ticket attempt and does not retry within
	// maxWait: an early false counts as a failed ticket attempt, and the
	// entry is re-decided and requeued.
	ObtainTicket(ctx context.Context, maxWait time.Duration) (Ticket, bool)

	// ReturnUnusedTicket restores a ticket the engine obtained but did
	// not ultimately spend on a dispatch. Must be benign and fast; a
	// ticket the limiter never issued is silently ignored.
	ReturnUnusedTicket(t Ticket)

	// AvailableTicketsEstimation returns a monitoring snapshot with no
	// business-logic guarantee attached to its value.
	AvailableTicketsEstimation() int64
}
