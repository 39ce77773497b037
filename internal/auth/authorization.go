package auth

import (
	"net/http"

	"github.com/frahmantamala/creatorpay/internal"
)

// RequireRoles rejects callers whose role is not listed. It must run after AuthMiddleware.
func (h *Handler) RequireRoles(roles ...internal.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := internal.ActorFromContext(r.Context())
			if !ok {
				h.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			h.Logger.WarnContext(r.Context(), "access denied: role not allowed",
				"actor_id", actor.ID,
				"role", actor.Role,
				"allowed_roles", roles)
			h.HandleServiceError(w, internal.NewForbiddenError("this action is not available for your role", internal.ErrCodeUnauthorizedAccess))
		})
	}
}
