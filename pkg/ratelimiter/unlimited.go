package ratelimiter

import (
	"context"
	"time"
)

// Unlimited is the reference "no rate limiting" collaborator: it issues
// a constant ticket immediately and ignores returns, matching the
// unlimited-stub variant described by the rate-limiter contract.
type Unlimited struct{}

// NewUnlimited constructs the unlimited stub limiter.
func NewUnlimited() *Unlimited { return &Unlimited{} }

func (u *Unlimited) ObtainTicket(_ context.Context, _ time.Duration) (Ticket, bool) {
	return Ticket{id: 0}, true
}

func (u *Unlimited) ReturnUnusedTicket(_ Ticket) {}

func (u *Unlimited) AvailableTicketsEstimation() int64 {
	return -1 // unbounded; -1 signals "not meaningful" to status consumers
}
