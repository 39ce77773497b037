package sandbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal/processor"
)

func TestSandbox(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Sandbox Processor Suite")
}

type receiver struct {
	mu     sync.Mutex
	events []processor.Event
	errs   []error
}

func (r *receiver) received() []processor.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]processor.Event(nil), r.events...)
}

var _ = ginkgo.Describe("Client", func() {
	var (
		server *httptest.Server
		client *Client
		recv   *receiver
		ctx    context.Context
	)

	newClient := func(successRate float64) {
		client = NewClient(Config{
			WebhookURL:    server.URL,
			WebhookSecret: "whsec_sandbox",
			MaxWorkers:    2,
			SuccessRate:   successRate,
		}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		recv = &receiver{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			evt, err := client.ParseEvent(body, r.Header.Get("Stripe-Signature"))
			recv.mu.Lock()
			if err != nil {
				recv.errs = append(recv.errs, err)
			} else {
				recv.events = append(recv.events, evt)
			}
			recv.mu.Unlock()
			w.WriteHeader(http.StatusOK)
		}))
	})

	ginkgo.AfterEach(func() {
		client.Shutdown()
		server.Close()
	})

	onboardedAccount := func() string {
		acct, err := client.CreateAccount(ctx, processor.AccountParams{InfluencerID: "inf-1"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		_, err = client.CreateOnboardingLink(ctx, acct.ID, "http://r", "http://ret")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Eventually(func() bool {
			a, _ := client.GetAccount(ctx, acct.ID)
			return a.PayoutsEnabled
		}, 2*time.Second).Should(gomega.BeTrue())
		return acct.ID
	}

	ginkgo.It("returns the same account for the same influencer", func() {
		newClient(1)
		a, err := client.CreateAccount(ctx, processor.AccountParams{InfluencerID: "inf-1"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		b, err := client.CreateAccount(ctx, processor.AccountParams{InfluencerID: "inf-1"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(b.ID).To(gomega.Equal(a.ID))
	})

	ginkgo.It("settles a successful intent with signed succeeded and transfer events", func() {
		newClient(1)
		acct := onboardedAccount()

		intent, err := client.CreateSplitIntent(ctx, processor.IntentParams{
			Amount: 10000, Currency: "usd", ApplicationFee: 500, Destination: acct, IdempotencyKey: "txn-1",
			Metadata: map[string]string{"transaction_id": "txn-1"},
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(intent.ClientSecret).ToNot(gomega.BeEmpty())

		gomega.Eventually(func() int { return len(recv.received()) }, 2*time.Second).Should(gomega.Equal(3))

		var succeeded *processor.IntentSucceeded
		var transfer *processor.TransferCreated
		for _, evt := range recv.received() {
			switch e := evt.(type) {
			case processor.IntentSucceeded:
				succeeded = &e
			case processor.TransferCreated:
				transfer = &e
			}
		}
		gomega.Expect(succeeded).ToNot(gomega.BeNil())
		gomega.Expect(succeeded.IntentID).To(gomega.Equal(intent.ID))
		gomega.Expect(succeeded.TransactionID).To(gomega.Equal("txn-1"))
		gomega.Expect(transfer).ToNot(gomega.BeNil())
		gomega.Expect(transfer.SourceTransaction).To(gomega.Equal(succeeded.ChargeID))
		gomega.Expect(transfer.Amount).To(gomega.Equal(int64(9500)))
		gomega.Expect(recv.errs).To(gomega.BeEmpty())
	})

	ginkgo.It("reports a failed intent", func() {
		newClient(0)
		acct := onboardedAccount()

		intent, err := client.CreateSplitIntent(ctx, processor.IntentParams{
			Amount: 100, Currency: "usd", ApplicationFee: 5, Destination: acct, IdempotencyKey: "txn-2",
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		gomega.Eventually(func() bool {
			for _, evt := range recv.received() {
				if f, ok := evt.(processor.IntentFailed); ok && f.IntentID == intent.ID {
					return true
				}
			}
			return false
		}, 2*time.Second).Should(gomega.BeTrue())
	})

	ginkgo.It("replays intents for a repeated idempotency key", func() {
		newClient(1)
		acct := onboardedAccount()

		params := processor.IntentParams{Amount: 100, Currency: "usd", Destination: acct, IdempotencyKey: "txn-3"}
		first, err := client.CreateSplitIntent(ctx, params)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		second, err := client.CreateSplitIntent(ctx, params)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(second.ID).To(gomega.Equal(first.ID))
	})

	ginkgo.It("cancels unpaid intents but not settled ones", func() {
		newClient(0)
		acct := onboardedAccount()

		unpaid, err := client.CreateSplitIntent(ctx, processor.IntentParams{Amount: 100, Currency: "usd", Destination: acct, IdempotencyKey: "txn-5"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		canceled, err := client.CancelIntent(ctx, unpaid.ID)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(canceled.Status).To(gomega.Equal(processor.IntentCanceled))

		client.mu.Lock()
		client.intents[unpaid.ID].intent.Status = processor.IntentSucceededStatus
		client.mu.Unlock()
		_, err = client.CancelIntent(ctx, unpaid.ID)
		var perr *processor.Error
		gomega.Expect(errors.As(err, &perr)).To(gomega.BeTrue())
		gomega.Expect(perr.Code).To(gomega.Equal("payment_intent_unexpected_state"))
	})

	ginkgo.It("refuses refunds beyond the captured amount", func() {
		newClient(1)
		acct := onboardedAccount()

		intent, err := client.CreateSplitIntent(ctx, processor.IntentParams{Amount: 1000, Currency: "usd", Destination: acct, IdempotencyKey: "txn-4"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Eventually(func() processor.IntentStatus {
			i, _ := client.GetIntent(ctx, intent.ID)
			return i.Status
		}, 2*time.Second).Should(gomega.Equal(processor.IntentSucceededStatus))

		_, err = client.CreateRefund(ctx, processor.RefundParams{IntentID: intent.ID, Amount: 600, IdempotencyKey: "r1"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		_, err = client.CreateRefund(ctx, processor.RefundParams{IntentID: intent.ID, Amount: 600, IdempotencyKey: "r2"})
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})
