package authz

import (
	"log/slog"
	"net/http"

	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Middleware guards routes with capability checks.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
}

// Require ensures the current actor holds the capability before the handler
// runs. Ownership-scoped capabilities pass here and are re-checked by the
// service against the loaded entity.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if err := m.Authorizer.Can(actor, action, Resource{}); err != nil {
				if m.Logger != nil {
					m.Logger.Warn("capability denied",
						slog.Int64("actor_id", actor.ID),
						slog.String("action", string(action)))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
