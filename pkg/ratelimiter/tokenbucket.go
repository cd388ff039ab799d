package ratelimiter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket is the reference token-bucket Limiter implementation,
// delegating the actual accounting to golang.org/x/time/rate the way
// other services in this codebase's lineage already do for outbound API
// throttling (see other_examples' academic-mcp ratelimit.go, and the
// direct golang.org/x/time dependency carried by the noisefs and
// LLMrecon repos in this pack).
type TokenBucket struct {
	limiter *rate.Limiter

	mu         sync.Mutex
	reservations map[uint64]*rate.Reservation
	nextID     uint64
}

// NewTokenBucket builds a limiter with the given bucket size and refill
// rate (refillCount tokens added every refillInterval). Per the rate
// limiter contract, the bucket starts empty (initial tokens = 0):
// golang.org/x/time/rate starts a limiter full, so the constructor
// immediately drains the initial burst.
func NewTokenBucket(bucketSize int, refillCount int, refillInterval time.Duration) *TokenBucket {
	var limit rate.Limit
	if refillInterval <= 0 || refillCount <= 0 {
		limit = 0
	} else {
		limit = rate.Every(refillInterval / time.Duration(refillCount))
	}

	l := rate.NewLimiter(limit, bucketSize)
	if bucketSize > 0 {
		l.AllowN(time.Now(), bucketSize) // drain the initial full bucket to zero
	}

	return &TokenBucket{
		limiter:      l,
		reservations: make(map[uint64]*rate.Reservation),
	}
}

func (t *TokenBucket) ObtainTicket(ctx context.Context, maxWait time.Duration) (Ticket, bool) {
	now := time.Now()
	reservation := t.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Ticket{}, false
	}

	delay := reservation.DelayFrom(now)
	if delay > maxWait {
		reservation.Cancel()
		return Ticket{}, false
	}
	if delay <= 0 {
		return t.track(reservation), true
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return t.track(reservation), true
	case <-ctx.Done():
		reservation.Cancel()
		return Ticket{}, false
	}
}

func (t *TokenBucket) track(r *rate.Reservation) Ticket {
	id := atomic.AddUint64(&t.nextID, 1)
	t.mu.Lock()
	t.reservations[id] = r
	t.mu.Unlock()
	return Ticket{id: id}
}

func (t *TokenBucket) ReturnUnusedTicket(ticket Ticket) {
	t.mu.Lock()
	r, ok := t.reservations[ticket.id]
	if ok {
		delete(t.reservations, ticket.id)
	}
	t.mu.Unlock()

	if ok {
		r.Cancel()
	}
}

func (t *TokenBucket) AvailableTicketsEstimation() int64 {
	return int64(t.limiter.TokensAt(time.Now()))
}
