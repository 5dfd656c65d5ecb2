package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/platform/httpx"
	"github.com/stockpilot/stockpilot/internal/shared"
)

// Handler manages stock endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ActionStockView))
		r.Get("/stock/entries", h.listEntries)
		r.Get("/stock/available", h.available)
		r.Get("/stock/movements", h.listMovements)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ActionStockManage))
		r.Post("/stock/adjust", h.adjust)
		r.Post("/stock/receive", h.receive)
	})
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	if err != nil || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid parameter", "warehouse_id is required")
		return
	}
	entries, err := h.service.ListEntries(r.Context(), warehouseID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID, err1 := strconv.ParseInt(q.Get("product_id"), 10, 64)
	warehouseID, err2 := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if err1 != nil || err2 != nil || productID <= 0 || warehouseID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid parameter", "product_id and warehouse_id are required")
		return
	}
	qty, err := h.service.Available(r.Context(), productID, warehouseID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":   productID,
		"warehouse_id": warehouseID,
		"available":    qty,
	})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{Kind: MovementKind(q.Get("kind"))}
	if v := q.Get("product_id"); v != "" {
		filter.ProductID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("warehouse_id"); v != "" {
		filter.WarehouseID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := q.Get("from"); v != "" {
		filter.From, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("to"); v != "" {
		filter.To, _ = time.Parse(time.RFC3339, v)
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var input AdjustInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	entry, err := h.service.Adjust(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	var input ReceiveInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	entry, err := h.service.Receive(r.Context(), actor, input)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}
