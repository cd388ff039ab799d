package ratelimiter_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arrowlabs/rrlsched/pkg/ratelimiter"
)

func TestRatelimiter(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ratelimiter Suite")
}

var _ = Describe("Unlimited", func() {
	It("always grants a ticket immediately", func() {
		u := ratelimiter.NewUnlimited()
		ticket, ok := u.ObtainTicket(context.Background(), 0)
		Expect(ok).To(BeTrue())
		u.ReturnUnusedTicket(ticket)
		Expect(u.AvailableTicketsEstimation()).To(Equal(int64(-1)))
	})
})

var _ = Describe("TokenBucket", func() {
	It("starts empty and refuses a ticket with zero wait", func() {
		tb := ratelimiter.NewTokenBucket(1, 1, time.Second)
		_, ok := tb.ObtainTicket(context.Background(), 0)
		Expect(ok).To(BeFalse())
	})

	It("grants a ticket once the wait covers the refill interval", func() {
		tb := ratelimiter.NewTokenBucket(1, 1, 50*time.Millisecond)
		_, ok := tb.ObtainTicket(context.Background(), 200*time.Millisecond)
		Expect(ok).To(BeTrue())
	})

	It("returning an unused ticket makes it available again promptly", func() {
		tb := ratelimiter.NewTokenBucket(1, 1, 50*time.Millisecond)
		ticket, ok := tb.ObtainTicket(context.Background(), 200*time.Millisecond)
		Expect(ok).To(BeTrue())
		tb.ReturnUnusedTicket(ticket)

		_, ok = tb.ObtainTicket(context.Background(), 10*time.Millisecond)
		Expect(ok).To(BeTrue())
	})

	It("respects context cancellation while waiting", func() {
		tb := ratelimiter.NewTokenBucket(1, 1, time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan bool, 1)
		go func() {
			_, ok := tb.ObtainTicket(ctx, 5*time.Second)
			done <- ok
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()
		Eventually(done, time.Second).Should(Receive(BeFalse()))
	})
})
