package payment_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal/payment"
)

type countingReconciler struct {
	calls    atomic.Int32
	deadline atomic.Bool
	err      error
}

func (r *countingReconciler) Reconcile(ctx context.Context) (*payment.ReconcileReport, error) {
	r.calls.Add(1)
	_, ok := ctx.Deadline()
	r.deadline.Store(ok)
	if r.err != nil {
		return nil, r.err
	}
	return &payment.ReconcileReport{Checked: 1}, nil
}

var _ = Describe("Scheduler", func() {
	var (
		reconciler *countingReconciler
		quiet      = slog.New(slog.NewTextHandler(io.Discard, nil))
	)

	BeforeEach(func() {
		reconciler = &countingReconciler{}
	})

	It("runs a single bounded pass on demand", func() {
		s := payment.NewScheduler(reconciler, "@every 1h", time.Minute, quiet)

		report, err := s.RunOnce(context.Background())
		Expect(err).ToNot(HaveOccurred())
		Expect(report.Checked).To(Equal(1))
		Expect(reconciler.deadline.Load()).To(BeTrue())
	})

	It("surfaces pass errors", func() {
		reconciler.err = errors.New("processor unavailable")
		s := payment.NewScheduler(reconciler, "@every 1h", time.Minute, quiet)

		_, err := s.RunOnce(context.Background())
		Expect(err).To(MatchError("processor unavailable"))
	})

	It("rejects an unparseable schedule", func() {
		s := payment.NewScheduler(reconciler, "every now and then", time.Minute, quiet)
		Expect(s.Start()).To(MatchError(ContainSubstring("every now and then")))
	})

	It("runs passes on the schedule until stopped", func() {
		s := payment.NewScheduler(reconciler, "@every 1s", time.Minute, quiet)
		Expect(s.Start()).To(Succeed())
		DeferCleanup(func() { <-s.Stop().Done() })

		Eventually(reconciler.calls.Load, 3*time.Second, 100*time.Millisecond).Should(BeNumerically(">=", 1))
	})
})
