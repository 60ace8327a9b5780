package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/franferrer12/intramedia-system-sub001/internal/shared"
)

// Handler exposes the order lifecycle over JSON.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.get)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Post("/send", h.send)
			r.Post("/confirm", h.confirm)
			r.Post("/transit", h.markInTransit)
			r.Post("/receive", h.receive)
			r.Post("/cancel", h.cancel)
			r.Get("/history", h.history)
		})
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := CreateInput{
		Number:     req.Number,
		SupplierID: req.SupplierID,
		Notes:      req.Notes,
		ActorID:    actorID(r),
		Lines:      toLineInputs(req.Lines),
	}
	if req.ExpectedDate != "" {
		input.ExpectedDate, _ = time.Parse(dateLayout, req.ExpectedDate)
	}
	order, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req updateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	input := UpdateDraftInput{
		Notes:   req.Notes,
		ActorID: actorID(r),
		Lines:   toLineInputs(req.Lines),
	}
	if req.ExpectedDate != "" {
		input.ExpectedDate, _ = time.Parse(dateLayout, req.ExpectedDate)
	}
	order, err := h.service.UpdateDraft(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filters := ListFilters{
		Status:     r.URL.Query().Get("status"),
		SupplierID: supplierID,
		Search:     r.URL.Query().Get("search"),
		SortBy:     r.URL.Query().Get("sort"),
		SortDir:    r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.List(r.Context(), limit, offset, filters)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newListResponse(items, total, limit, offset))
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.service.Send)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.service.Confirm)
}

func (h *Handler) markInTransit(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.service.MarkInTransit)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength > 0 {
		if !h.decode(w, r, &req) {
			return
		}
	}
	order, err := h.service.Cancel(r.Context(), id, actorID(r), req.Reason)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if !h.decode(w, r, &req) {
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		h.writeError(w, r, shared.NewValidationError("event_id", "must be a valid uuid"))
		return
	}
	input := ReceiveInput{
		EventID: eventID,
		Notes:   req.Notes,
		ActorID: actorID(r),
		Items:   make([]ReceptionItem, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		input.Items = append(input.Items, ReceptionItem{LineID: line.LineID, Qty: line.Qty, Notes: line.Notes})
	}
	order, err := h.service.Receive(r.Context(), id, input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id, actorID(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newHistoryResponse(entries))
}

func (h *Handler) statusTransition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, orderID, actorID int64) (Order, error)) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	order, err := op(r.Context(), id, actorID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, newOrderResponse(order))
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, r, shared.NewValidationError("id", "must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeError(w, r, shared.NewValidationError("body", "malformed JSON"))
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			h.writeError(w, r, shared.NewValidationError(fieldErrs[0].Field(), "failed "+fieldErrs[0].Tag()+" validation"))
			return false
		}
		h.writeError(w, r, shared.NewValidationError("body", "invalid payload"))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("write response", slog.Any("error", err))
	}
}

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status = http.StatusInternalServerError
		body   = errorBody{Code: "internal", Message: "internal error"}
	)
	var (
		validation  *shared.ValidationError
		transition  *shared.StateTransitionError
		overReceipt *shared.OverReceiptError
		conflict    *shared.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &validation):
		status = http.StatusUnprocessableEntity
		body = errorBody{Code: "validation", Message: validation.Error(), Details: map[string]any{
			"field": validation.Field, "reason": validation.Reason,
		}}
	case errors.As(err, &overReceipt):
		status = http.StatusUnprocessableEntity
		body = errorBody{Code: "over_receipt", Message: overReceipt.Error(), Details: map[string]any{
			"order_id": overReceipt.OrderID, "line_id": overReceipt.LineID,
			"requested": overReceipt.Requested.String(), "pending": overReceipt.Pending.String(),
		}}
	case errors.As(err, &transition):
		status = http.StatusConflict
		body = errorBody{Code: "state_transition", Message: transition.Error(), Details: map[string]any{
			"order_id": transition.OrderID, "from": transition.From, "action": transition.Action,
		}}
	case errors.As(err, &conflict):
		status = http.StatusConflict
		body = errorBody{Code: "concurrency_conflict", Message: conflict.Error(), Details: map[string]any{
			"order_id": conflict.OrderID,
		}}
	case errors.Is(err, shared.ErrDuplicateEvent):
		status = http.StatusConflict
		body = errorBody{Code: "duplicate_event", Message: err.Error()}
	case errors.Is(err, shared.ErrNotFound):
		status = http.StatusNotFound
		body = errorBody{Code: "not_found", Message: "order not found"}
	default:
		h.logger.Error("order operation", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	h.writeJSON(w, status, body)
}

func toLineInputs(reqs []lineRequest) []LineInput {
	lines := make([]LineInput, 0, len(reqs))
	for _, req := range reqs {
		lines = append(lines, LineInput{ProductID: req.ProductID, Qty: req.Qty, UnitPrice: req.UnitPrice, Notes: req.Notes})
	}
	return lines
}

func actorID(r *http.Request) int64 {
	return shared.RequestMetaFromContext(r.Context()).ActorID
}
