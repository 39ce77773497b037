package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/frahmantamala/creatorpay/internal/processor"
)

const testWebhookSecret = "whsec_test_secret"

func TestStripeProcessor(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Stripe Processor Suite")
}

func signedEvent(body map[string]interface{}) (payload []byte, header string) {
	raw, err := json.Marshal(body)
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   raw,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}

func event(id, typ string, object map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"id":          id,
		"object":      "event",
		"type":        typ,
		"api_version": "2020-08-27",
		"data":        map[string]interface{}{"object": object},
	}
}

var _ = ginkgo.Describe("ParseSignedEvent", func() {
	ginkgo.It("decodes payment_intent.succeeded with the latest charge", func() {
		payload, header := signedEvent(event("evt_1", "payment_intent.succeeded", map[string]interface{}{
			"id":            "pi_123",
			"object":        "payment_intent",
			"amount":        10000,
			"status":        "succeeded",
			"latest_charge": "ch_123",
			"metadata":      map[string]string{"transaction_id": "txn-1"},
		}))

		evt, err := ParseSignedEvent(payload, header, testWebhookSecret)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		succeeded, ok := evt.(processor.IntentSucceeded)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(succeeded.EventID()).To(gomega.Equal("evt_1"))
		gomega.Expect(succeeded.IntentID).To(gomega.Equal("pi_123"))
		gomega.Expect(succeeded.ChargeID).To(gomega.Equal("ch_123"))
		gomega.Expect(succeeded.TransactionID).To(gomega.Equal("txn-1"))
		gomega.Expect(succeeded.Amount).To(gomega.Equal(int64(10000)))
	})

	ginkgo.It("decodes payment_intent.payment_failed with the processor's reason", func() {
		payload, header := signedEvent(event("evt_2", "payment_intent.payment_failed", map[string]interface{}{
			"id":     "pi_123",
			"object": "payment_intent",
			"status": "requires_payment_method",
			"last_payment_error": map[string]interface{}{
				"message": "Your card was declined.",
				"type":    "card_error",
			},
		}))

		evt, err := ParseSignedEvent(payload, header, testWebhookSecret)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		failed, ok := evt.(processor.IntentFailed)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(failed.Reason).To(gomega.Equal("Your card was declined."))
	})

	ginkgo.It("decodes account.updated flags", func() {
		payload, header := signedEvent(event("evt_3", "account.updated", map[string]interface{}{
			"id":                "acct_1",
			"object":            "account",
			"details_submitted": true,
			"charges_enabled":   true,
			"payouts_enabled":   false,
		}))

		evt, err := ParseSignedEvent(payload, header, testWebhookSecret)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		updated, ok := evt.(processor.AccountUpdated)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(updated.AccountID).To(gomega.Equal("acct_1"))
		gomega.Expect(updated.DetailsSubmitted).To(gomega.BeTrue())
		gomega.Expect(updated.ChargesEnabled).To(gomega.BeTrue())
		gomega.Expect(updated.PayoutsEnabled).To(gomega.BeFalse())
	})

	ginkgo.It("decodes transfer.created with its source charge and metadata", func() {
		payload, header := signedEvent(event("evt_4", "transfer.created", map[string]interface{}{
			"id":                 "tr_1",
			"object":             "transfer",
			"amount":             9500,
			"destination":        "acct_1",
			"source_transaction": "ch_123",
			"metadata":           map[string]interface{}{"payment_intent_id": "pi_123"},
		}))

		evt, err := ParseSignedEvent(payload, header, testWebhookSecret)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		created, ok := evt.(processor.TransferCreated)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(created.TransferID).To(gomega.Equal("tr_1"))
		gomega.Expect(created.Destination).To(gomega.Equal("acct_1"))
		gomega.Expect(created.SourceTransaction).To(gomega.Equal("ch_123"))
		gomega.Expect(created.PaymentIntentID).To(gomega.Equal("pi_123"))
	})

	ginkgo.It("maps unhandled types to Ignored", func() {
		payload, header := signedEvent(event("evt_5", "customer.created", map[string]interface{}{
			"id":     "cus_1",
			"object": "customer",
		}))

		evt, err := ParseSignedEvent(payload, header, testWebhookSecret)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		_, ok := evt.(processor.Ignored)
		gomega.Expect(ok).To(gomega.BeTrue())
		gomega.Expect(evt.EventType()).To(gomega.Equal("customer.created"))
	})

	ginkgo.It("rejects a payload signed with another secret", func() {
		payload, header := signedEvent(event("evt_6", "payment_intent.succeeded", map[string]interface{}{"id": "pi_1"}))

		_, err := ParseSignedEvent(payload, header, "whsec_other")
		gomega.Expect(errors.Is(err, processor.ErrInvalidSignature)).To(gomega.BeTrue())
	})

	ginkgo.It("rejects a tampered payload", func() {
		payload, header := signedEvent(event("evt_7", "payment_intent.succeeded", map[string]interface{}{"id": "pi_1"}))
		tampered := append([]byte{}, payload...)
		tampered[len(tampered)-2] = ' '

		_, err := ParseSignedEvent(tampered, header, testWebhookSecret)
		gomega.Expect(errors.Is(err, processor.ErrInvalidSignature)).To(gomega.BeTrue())
	})
})

var _ = ginkgo.Describe("Client against a fake API", func() {
	var (
		server   *httptest.Server
		client   *Client
		lastForm map[string]string
		lastKey  string
		respond  func(w http.ResponseWriter, r *http.Request)
	)

	ginkgo.BeforeEach(func() {
		lastForm = map[string]string{}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = r.ParseForm()
			for k := range r.PostForm {
				lastForm[k] = r.PostForm.Get(k)
			}
			lastKey = r.Header.Get("Idempotency-Key")
			w.Header().Set("Content-Type", "application/json")
			respond(w, r)
		}))
		client = NewClient(Config{
			SecretKey:     "sk_test_123",
			WebhookSecret: testWebhookSecret,
			Timeout:       2 * time.Second,
			BackendURL:    server.URL,
			Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.It("creates a destination charge with the fee and idempotency key", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			gomega.Expect(r.URL.Path).To(gomega.Equal("/v1/payment_intents"))
			_, _ = w.Write([]byte(`{"id":"pi_new","object":"payment_intent","amount":10000,"client_secret":"pi_new_secret","status":"requires_payment_method"}`))
		}

		intent, err := client.CreateSplitIntent(context.Background(), processor.IntentParams{
			Amount:         10000,
			Currency:       "usd",
			ApplicationFee: 500,
			Destination:    "acct_1",
			IdempotencyKey: "txn-1",
			Metadata:       map[string]string{"transaction_id": "txn-1"},
		})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(intent.ID).To(gomega.Equal("pi_new"))
		gomega.Expect(intent.ClientSecret).To(gomega.Equal("pi_new_secret"))
		gomega.Expect(intent.Status).To(gomega.Equal(processor.IntentRequiresPaymentMethod))
		gomega.Expect(lastForm["application_fee_amount"]).To(gomega.Equal("500"))
		gomega.Expect(lastForm["transfer_data[destination]"]).To(gomega.Equal("acct_1"))
		gomega.Expect(lastForm["metadata[transaction_id]"]).To(gomega.Equal("txn-1"))
		gomega.Expect(lastKey).To(gomega.Equal("txn-1"))
	})

	ginkgo.It("maps a card decline to a permanent processor error", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusPaymentRequired)
			_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
		}

		_, err := client.CreateSplitIntent(context.Background(), processor.IntentParams{Amount: 100, Currency: "usd", IdempotencyKey: "k"})
		var perr *processor.Error
		gomega.Expect(errors.As(err, &perr)).To(gomega.BeTrue())
		gomega.Expect(perr.Code).To(gomega.Equal("card_declined"))
		gomega.Expect(perr.Temporary).To(gomega.BeFalse())
		gomega.Expect(processor.IsTemporary(err)).To(gomega.BeFalse())
	})

	ginkgo.It("treats server errors as temporary", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"boom"}}`))
		}

		_, err := client.CreateTransfer(context.Background(), processor.TransferParams{Amount: 100, Currency: "usd", Destination: "acct_1", IdempotencyKey: "k"})
		gomega.Expect(processor.IsTemporary(err)).To(gomega.BeTrue())
	})

	ginkgo.It("cancels an abandoned intent", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			gomega.Expect(r.URL.Path).To(gomega.Equal("/v1/payment_intents/pi_old/cancel"))
			_, _ = w.Write([]byte(`{"id":"pi_old","object":"payment_intent","amount":10000,"status":"canceled"}`))
		}

		intent, err := client.CancelIntent(context.Background(), "pi_old")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(intent.Status).To(gomega.Equal(processor.IntentCanceled))
		gomega.Expect(lastForm["cancellation_reason"]).To(gomega.Equal("abandoned"))
	})

	ginkgo.It("requests refunds that unwind the transfer and the application fee", func() {
		respond = func(w http.ResponseWriter, r *http.Request) {
			gomega.Expect(r.URL.Path).To(gomega.Equal("/v1/refunds"))
			_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","amount":4000,"status":"succeeded"}`))
		}

		refund, err := client.CreateRefund(context.Background(), processor.RefundParams{IntentID: "pi_1", Amount: 4000, IdempotencyKey: "refund-1"})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(refund.ID).To(gomega.Equal("re_1"))
		gomega.Expect(lastForm["reverse_transfer"]).To(gomega.Equal("true"))
		gomega.Expect(lastForm["refund_application_fee"]).To(gomega.Equal("true"))
		gomega.Expect(lastForm["payment_intent"]).To(gomega.Equal("pi_1"))
	})
})
