package payment_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
	"github.com/frahmantamala/creatorpay/internal/payment"
)

type stubService struct {
	intentDTO payment.CreateIntentDTO
	refundDTO payment.RefundDTO
	filter    payment.TransactionFilter
	err       error
}

func (s *stubService) CreatePaymentIntent(ctx context.Context, actor internal.Actor, dto payment.CreateIntentDTO) (*payment.IntentResponse, error) {
	s.intentDTO = dto
	if s.err != nil {
		return nil, s.err
	}
	return &payment.IntentResponse{TransactionID: "txn-1", PaymentIntentID: "pi_1", ClientSecret: "pi_1_secret", Amount: dto.Amount}, nil
}

func (s *stubService) RequestPayout(ctx context.Context, actor internal.Actor) (*payment.PayoutResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &payment.PayoutResponse{TransferID: "tr_1", Amount: 9500, Currency: "usd", TransactionCount: 1}, nil
}

func (s *stubService) Refund(ctx context.Context, actor internal.Actor, dto payment.RefundDTO) (*payment.RefundResponse, error) {
	s.refundDTO = dto
	if s.err != nil {
		return nil, s.err
	}
	return &payment.RefundResponse{RefundID: "re_1", TransactionID: dto.TransactionID, Amount: 10000}, nil
}

func (s *stubService) ListTransactions(ctx context.Context, actor internal.Actor, filter payment.TransactionFilter) ([]*payment.Transaction, error) {
	s.filter = filter
	return []*payment.Transaction{{ID: "txn-1", Status: txdm.StatusCompleted}}, nil
}

func (s *stubService) Earnings(ctx context.Context, actor internal.Actor) (*payment.EarningsSummary, error) {
	return &payment.EarningsSummary{InfluencerID: actor.ID, Earnings: []payment.Earnings{}}, nil
}

var _ = Describe("Handler", func() {
	var (
		router  chi.Router
		service *stubService
		brand   = internal.Actor{ID: "brand-1", Role: internal.RoleBrand}
	)

	BeforeEach(func() {
		service = &stubService{}
		handler := payment.NewHandler(service)
		router = chi.NewRouter()
		router.Post("/payments/create-payment-intent", handler.CreatePaymentIntent)
		router.Post("/payments/request-payout", handler.RequestPayout)
		router.Post("/payments/refund", handler.Refund)
		router.Get("/payments/transactions", handler.ListTransactions)
		router.Get("/payments/earnings", handler.Earnings)
	})

	serve := func(method, target string, body interface{}, actor *internal.Actor) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, target, &buf)
		if actor != nil {
			req = req.WithContext(internal.ContextWithActor(req.Context(), *actor))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("returns the client secret for a new intent", func() {
		rec := serve(http.MethodPost, "/payments/create-payment-intent", map[string]interface{}{"application_id": "app-1", "amount": 10000}, &brand)
		Expect(rec.Code).To(Equal(http.StatusOK))

		var resp payment.IntentResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.ClientSecret).To(Equal("pi_1_secret"))
		Expect(service.intentDTO.ApplicationID).To(Equal("app-1"))
	})

	It("requires an authenticated actor", func() {
		rec := serve(http.MethodPost, "/payments/create-payment-intent", map[string]interface{}{"application_id": "app-1", "amount": 10000}, nil)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("maps precondition failures to 412", func() {
		service.err = internal.NewPreconditionFailedError("application must be accepted", internal.ErrCodeApplicationNotAccepted)
		rec := serve(http.MethodPost, "/payments/create-payment-intent", map[string]interface{}{"application_id": "app-1", "amount": 10000}, &brand)
		Expect(rec.Code).To(Equal(http.StatusPreconditionFailed))
		Expect(rec.Body.String()).To(ContainSubstring("APPLICATION_NOT_ACCEPTED"))
	})

	It("passes an optional partial refund amount through", func() {
		rec := serve(http.MethodPost, "/payments/refund", map[string]interface{}{"transaction_id": "txn-1", "amount": 2500, "reason": "late"}, &brand)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(service.refundDTO.Amount).ToNot(BeNil())
		Expect(*service.refundDTO.Amount).To(Equal(int64(2500)))
	})

	It("reads the status filter and pagination", func() {
		rec := serve(http.MethodGet, "/payments/transactions?status=completed&limit=5", nil, &brand)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(service.filter.Status).To(Equal(txdm.StatusCompleted))
		Expect(service.filter.Limit).To(Equal(5))
	})
})
