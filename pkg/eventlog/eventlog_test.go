package eventlog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/arrowlabs/rrlsched/pkg/eventlog"
	"github.com/arrowlabs/rrlsched/pkg/scheduler"
)

func TestEventlog(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Event Log Suite")
}

var _ = Describe("Sink", func() {
	var sink *eventlog.Sink

	BeforeEach(func() {
		var err error
		sink, err = eventlog.Open(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if sink != nil {
			sink.Close()
		}
	})

	It("persists emitted events and returns them newest first", func() {
		sink.OnEvent(scheduler.Event{Kind: scheduler.EventRequestAdded, RequestID: "r1", Timestamp: time.Now()})
		sink.OnEvent(scheduler.Event{Kind: scheduler.EventRequestSuccess, RequestID: "r1", Timestamp: time.Now()})

		records, err := sink.Recent(context.Background(), 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(2))
		Expect(records[0].Kind).To(Equal(string(scheduler.EventRequestSuccess)))
		Expect(records[1].Kind).To(Equal(string(scheduler.EventRequestAdded)))
	})

	It("records the attempt-failure cause", func() {
		cause := errors.New("boom")
		sink.OnEvent(scheduler.Event{Kind: scheduler.EventRequestAttemptFailed, RequestID: "r2", Cause: cause, Timestamp: time.Now()})

		records, err := sink.Recent(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(records).To(HaveLen(1))
		Expect(records[0].Cause).To(Equal("boom"))
	})
})
