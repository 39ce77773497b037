package payment

import (
	"context"
	"net/http"

	"github.com/frahmantamala/creatorpay/internal"
	txdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/transaction"
	"github.com/frahmantamala/creatorpay/internal/transport"
)

type ServiceAPI interface {
	CreatePaymentIntent(ctx context.Context, actor internal.Actor, dto CreateIntentDTO) (*IntentResponse, error)
	RequestPayout(ctx context.Context, actor internal.Actor) (*PayoutResponse, error)
	Refund(ctx context.Context, actor internal.Actor, dto RefundDTO) (*RefundResponse, error)
	ListTransactions(ctx context.Context, actor internal.Actor, filter TransactionFilter) ([]*Transaction, error)
	Earnings(ctx context.Context, actor internal.Actor) (*EarningsSummary, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(nil),
		Service:     service,
	}
}

func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto CreateIntentDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Service.CreatePaymentIntent(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Error("CreatePaymentIntent: service error", "error", err, "application_id", dto.ApplicationID, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, err := h.Service.RequestPayout(r.Context(), actor)
	if err != nil {
		h.Logger.Error("RequestPayout: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto RefundDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	resp, err := h.Service.Refund(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Error("Refund: service error", "error", err, "transaction_id", dto.TransactionID, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := h.Pagination(r)
	txns, err := h.Service.ListTransactions(r.Context(), actor, TransactionFilter{
		Status: txdm.Status(r.URL.Query().Get("status")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *Handler) Earnings(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	summary, err := h.Service.Earnings(r.Context(), actor)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, summary)
}
