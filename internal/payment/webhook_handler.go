package payment

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/frahmantamala/creatorpay/internal"
	"github.com/frahmantamala/creatorpay/internal/processor"
	"github.com/frahmantamala/creatorpay/internal/transport"
)

const (
	SignatureHeader    = "Stripe-Signature"
	maxWebhookBodySize = 64 << 10
)

// EventVerifier authenticates a raw webhook body.
type EventVerifier interface {
	ParseEvent(payload []byte, signatureHeader string) (processor.Event, error)
}

type EventProcessor interface {
	HandleEvent(ctx context.Context, ev processor.Event) error
}

type WebhookHandler struct {
	*transport.BaseHandler
	verifier  EventVerifier
	processor EventProcessor
}

func NewWebhookHandler(verifier EventVerifier, processor EventProcessor) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(nil),
		verifier:    verifier,
		processor:   processor,
	}
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

// HandleWebhook verifies the signature over the raw body before anything is written. Signature failures
// get 400 so the processor stops retrying; processing failures get 500 so it redelivers.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteError(w, http.StatusRequestEntityTooLarge, "webhook body too large")
			return
		}
		h.WriteError(w, http.StatusBadRequest, "failed to read webhook body")
		return
	}

	ev, err := h.verifier.ParseEvent(payload, r.Header.Get(SignatureHeader))
	if err != nil {
		h.Logger.Warn("webhook rejected", "error", err, "remote_addr", r.RemoteAddr)
		h.HandleServiceError(w, internal.NewSignatureError(err))
		return
	}

	if err := h.processor.HandleEvent(r.Context(), ev); err != nil {
		h.Logger.Error("webhook processing failed", "event_id", ev.EventID(), "type", ev.EventType(), "error", err)
		h.HandleServiceError(w, internal.NewInternalError("failed to process webhook event", err))
		return
	}

	h.Logger.Info("webhook processed", "event_id", ev.EventID(), "type", ev.EventType())
	h.WriteJSON(w, http.StatusOK, WebhookResponse{Received: true})
}
