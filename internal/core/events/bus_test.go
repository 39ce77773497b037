package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/pkg/logger"
)

func TestEventBus(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Event Bus Suite")
}

var _ = ginkgo.Describe("EventBus", func() {
	var bus *EventBus

	ginkgo.BeforeEach(func() {
		bus = NewEventBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	created := func() *NotificationCreatedEvent {
		return NewNotificationCreatedEvent("n1", "u1", "payout_sent", "Payout sent", "")
	}

	ginkgo.It("delivers published events to every subscriber asynchronously", func() {
		var calls int32
		handler := func(ctx context.Context, event Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		}
		bus.Subscribe(EventTypeNotificationCreated, handler)
		bus.Subscribe(EventTypeNotificationCreated, handler)

		gomega.Expect(bus.Publish(context.Background(), created())).To(gomega.Succeed())
		gomega.Eventually(func() int32 { return atomic.LoadInt32(&calls) }, time.Second).Should(gomega.Equal(int32(2)))
	})

	ginkgo.It("hands typed subscribers the concrete event and skips other shapes", func() {
		var (
			mu  sync.Mutex
			got []string
		)
		On(bus, EventTypeNotificationCreated, func(ctx context.Context, event *NotificationCreatedEvent) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, event.NotificationID)
			return nil
		})

		gomega.Expect(bus.Publish(context.Background(), BaseEvent{ID: "e1", Type: EventTypeNotificationCreated})).To(gomega.Succeed())
		gomega.Expect(bus.Publish(context.Background(), created())).To(gomega.Succeed())
		gomega.Expect(bus.Drain(context.Background())).To(gomega.Succeed())

		mu.Lock()
		defer mu.Unlock()
		gomega.Expect(got).To(gomega.Equal([]string{"n1"}))
	})

	ginkgo.It("keeps delivering after the publisher's context is cancelled", func() {
		var (
			handlerErr error
			traceID    string
		)
		release := make(chan struct{})
		bus.Subscribe(EventTypeNotificationCreated, func(ctx context.Context, event Event) error {
			<-release
			handlerErr = ctx.Err()
			traceID = logger.TraceID(ctx)
			return nil
		})

		ctx, cancel := context.WithCancel(logger.WithTraceID(context.Background(), "trace-1"))
		gomega.Expect(bus.Publish(ctx, created())).To(gomega.Succeed())
		cancel()
		close(release)

		gomega.Expect(bus.Drain(context.Background())).To(gomega.Succeed())
		gomega.Expect(handlerErr).ToNot(gomega.HaveOccurred())
		gomega.Expect(traceID).To(gomega.Equal("trace-1"))
	})

	ginkgo.It("survives failing and panicking handlers", func() {
		var calls int32
		bus.Subscribe(EventTypeNotificationCreated, func(ctx context.Context, event Event) error {
			return errors.New("boom")
		})
		bus.Subscribe(EventTypeNotificationCreated, func(ctx context.Context, event Event) error {
			panic("nil relay")
		})
		bus.Subscribe(EventTypeNotificationCreated, func(ctx context.Context, event Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})

		gomega.Expect(bus.Publish(context.Background(), created())).To(gomega.Succeed())
		gomega.Expect(bus.Drain(context.Background())).To(gomega.Succeed())
		gomega.Expect(atomic.LoadInt32(&calls)).To(gomega.Equal(int32(1)))
	})

	ginkgo.It("gives up draining when its context ends", func() {
		release := make(chan struct{})
		defer close(release)
		bus.Subscribe(EventTypeNotificationCreated, func(ctx context.Context, event Event) error {
			<-release
			return nil
		})
		gomega.Expect(bus.Publish(context.Background(), created())).To(gomega.Succeed())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		gomega.Expect(bus.Drain(ctx)).To(gomega.MatchError(context.DeadlineExceeded))
	})

	ginkgo.It("ignores events nobody subscribed to", func() {
		gomega.Expect(bus.Publish(context.Background(), created())).To(gomega.Succeed())
		gomega.Expect(bus.Drain(context.Background())).To(gomega.Succeed())
	})
})
