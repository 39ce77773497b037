package application

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/creatorpay/internal"
	appdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/application"
	"github.com/frahmantamala/creatorpay/internal/transport"
	"github.com/frahmantamala/creatorpay/pkg/logger"
)

type ServiceAPI interface {
	Submit(ctx context.Context, actor internal.Actor, dto SubmitApplicationDTO) (*Application, error)
	Invite(ctx context.Context, actor internal.Actor, dto InviteInfluencerDTO) (*Application, error)
	UpdateStatus(ctx context.Context, actor internal.Actor, id string, newStatus appdm.Status) (*Application, error)
	Withdraw(ctx context.Context, actor internal.Actor, id string) (*Application, error)
	Get(ctx context.Context, actor internal.Actor, id string) (*Application, error)
	List(ctx context.Context, actor internal.Actor, filter ListFilter) ([]*Application, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto SubmitApplicationDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	app, err := h.Service.Submit(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Error("Submit: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto InviteInfluencerDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	app, err := h.Service.Invite(r.Context(), actor, dto)
	if err != nil {
		h.Logger.Error("Invite: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, app)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := h.Pagination(r)
	filter := ListFilter{
		CampaignID: r.URL.Query().Get("campaign_id"),
		Status:     appdm.Status(r.URL.Query().Get("status")),
		Limit:      limit,
		Offset:     offset,
	}

	apps, err := h.Service.List(r.Context(), actor, filter)
	if err != nil {
		h.Logger.Error("List: service error", "error", err, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"applications": apps,
		"limit":        limit,
		"offset":       offset,
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	app, err := h.Service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var dto UpdateStatusDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	app, err := h.Service.UpdateStatus(r.Context(), actor, id, dto.Status)
	if err != nil {
		h.Logger.Error("UpdateStatus: service error", "error", err, "application_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, app)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	app, err := h.Service.Withdraw(r.Context(), actor, id)
	if err != nil {
		h.Logger.Error("Withdraw: service error", "error", err, "application_id", id, "actor_id", actor.ID)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, app)
}
