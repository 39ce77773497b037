package payment_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apppg "github.com/frahmantamala/creatorpay/internal/application/postgres"
	campaignpg "github.com/frahmantamala/creatorpay/internal/campaign/postgres"
	connectpg "github.com/frahmantamala/creatorpay/internal/connect/postgres"
	accountdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/account"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
	campaigndm "github.com/frahmantamala/creatorpay/internal/core/datamodel/campaign"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
	"github.com/frahmantamala/creatorpay/internal/fee"
	"github.com/frahmantamala/creatorpay/internal/payment"
	paymentpg "github.com/frahmantamala/creatorpay/internal/payment/postgres"
	"github.com/frahmantamala/creatorpay/internal/processor"
	"github.com/frahmantamala/creatorpay/internal/processor/processortest"
)

type stubProcessor struct {
	handled []processor.Event
	err     error
}

func (s *stubProcessor) HandleEvent(ctx context.Context, ev processor.Event) error {
	s.handled = append(s.handled, ev)
	return s.err
}

var _ = Describe("WebhookHandler", func() {
	var (
		verifier *processortest.Fake
		events   *stubProcessor
		handler  *payment.WebhookHandler
	)

	BeforeEach(func() {
		verifier = processortest.New()
		verifier.ParseFunc = func(payload []byte, header string) (processor.Event, error) {
			if header != "t=1,v1=good" {
				return nil, processor.ErrInvalidSignature
			}
			return processor.IntentSucceeded{
				Meta:     processor.Meta{ID: "evt_1", Type: "payment_intent.succeeded"},
				IntentID: "pi_1",
			}, nil
		}
		events = &stubProcessor{}
		handler = payment.NewWebhookHandler(verifier, events)
	})

	post := func(body, signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
		if signature != "" {
			req.Header.Set(payment.SignatureHeader, signature)
		}
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)
		return rec
	}

	It("acknowledges a verified event after handling it", func() {
		rec := post(`{"id":"evt_1"}`, "t=1,v1=good")
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp payment.WebhookResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Received).To(BeTrue())
		Expect(events.handled).To(HaveLen(1))
	})

	It("rejects a bad signature without handling anything", func() {
		rec := post(`{"id":"evt_1"}`, "t=1,v1=forged")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(rec.Body.String()).To(ContainSubstring("INVALID_SIGNATURE"))
		Expect(events.handled).To(BeEmpty())
	})

	It("rejects a missing signature", func() {
		rec := post(`{"id":"evt_1"}`, "")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(events.handled).To(BeEmpty())
	})

	It("asks for redelivery when handling fails", func() {
		events.err = errors.New("database unavailable")
		rec := post(`{"id":"evt_1"}`, "t=1,v1=good")
		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
	})

	It("refuses oversized bodies", func() {
		rec := post(strings.Repeat("x", 65<<10), "t=1,v1=good")
		Expect(rec.Code).To(Equal(http.StatusRequestEntityTooLarge))
		Expect(events.handled).To(BeEmpty())
	})
})

var _ = Describe("WebhookHandler with stored transactions", func() {
	var (
		db      *gorm.DB
		ctx     context.Context
		repo    *paymentpg.TransactionRepository
		handler *payment.WebhookHandler
		txnID   string
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
			NowFunc:        func() time.Time { return time.Now().UTC() },
		})
		Expect(err).ToNot(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).ToNot(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(
			&campaigndm.Campaign{},
			&appdm.Application{},
			&accountdm.ConnectedAccount{},
			&txdm.Transaction{},
			&txdm.ProcessedWebhookEvent{},
		)).To(Succeed())
		ctx = context.Background()

		app := &appdm.Application{CampaignID: "camp-1", InfluencerID: "inf-1", ProposedRate: 10000, Status: appdm.StatusAccepted}
		Expect(db.Create(app).Error).To(Succeed())
		repo = paymentpg.NewTransactionRepository(db)
		txn := &payment.Transaction{
			ApplicationID: app.ID, CampaignID: "camp-1", BrandID: "brand-1", InfluencerID: "inf-1",
			Amount: 10000, PlatformFee: 500, InfluencerPayout: 9500, FeeRatePercent: "5", Currency: "usd",
			Status: txdm.StatusPending,
		}
		Expect(repo.Reserve(ctx, txn)).To(Succeed())
		_, err = repo.AttachIntent(ctx, txn.ID, "pi_1")
		Expect(err).ToNot(HaveOccurred())
		txnID = txn.ID

		calc, err := fee.NewCalculator(decimal.NewFromInt(5))
		Expect(err).ToNot(HaveOccurred())
		client := processortest.New()
		client.ParseFunc = func(payload []byte, header string) (processor.Event, error) {
			if header != "t=1,v1=good" {
				return nil, processor.ErrInvalidSignature
			}
			return processor.IntentSucceeded{
				Meta:     processor.Meta{ID: "evt_1", Type: "payment_intent.succeeded"},
				IntentID: "pi_1",
				ChargeID: "ch_1",
			}, nil
		}
		svc := payment.NewService(payment.Deps{
			Repo:         repo,
			Applications: apppg.NewApplicationRepository(db),
			Campaigns:    campaignpg.NewCampaignRepository(db),
			Accounts:     connectpg.NewAccountRepository(db),
			AccountSync:  &recordingSync{},
			Earnings:     noEarnings{},
			Processor:    client,
			Fees:         calc,
			Notifier:     &recordingNotifier{},
			Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		}, payment.Config{})
		handler = payment.NewWebhookHandler(client, svc)
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
		req.Header.Set(payment.SignatureHeader, signature)
		rec := httptest.NewRecorder()
		handler.HandleWebhook(rec, req)
		return rec
	}

	load := func() *payment.Transaction {
		txn, err := repo.GetByID(ctx, txnID)
		Expect(err).ToNot(HaveOccurred())
		return txn
	}

	It("leaves the transaction row untouched when the signature is forged", func() {
		before := load()

		rec := post("t=1,v1=forged")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		Expect(load()).To(Equal(before))
		var recorded int64
		Expect(db.Model(&txdm.ProcessedWebhookEvent{}).Count(&recorded).Error).To(Succeed())
		Expect(recorded).To(BeZero())
	})

	It("completes the transaction for the same payload once signed", func() {
		rec := post("t=1,v1=good")
		Expect(rec.Code).To(Equal(http.StatusOK))

		txn := load()
		Expect(txn.Status).To(Equal(txdm.StatusCompleted))
		Expect(txn.ExternalChargeID).To(Equal("ch_1"))
	})
})
