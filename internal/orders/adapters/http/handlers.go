package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	agentdomain "github.com/bookworks/backoffice/internal/agents/domain"
	"github.com/bookworks/backoffice/internal/orders/app"
	"github.com/bookworks/backoffice/internal/orders/domain"
	"github.com/bookworks/backoffice/internal/orders/ingest"
	"github.com/bookworks/backoffice/internal/orders/ports"
)

// Handler exposes HTTP endpoints for the order store and order operations.
type Handler struct {
	scheduler *ingest.Scheduler
	service   *app.Service
}

// NewHandler constructs a Handler.
func NewHandler(scheduler *ingest.Scheduler, service *app.Service) *Handler {
	return &Handler{scheduler: scheduler, service: service}
}

// Register binds the order handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/orders", h.handleOrders)
	mux.HandleFunc("/v1/orders/", h.handleOrderByID)
	mux.HandleFunc("/v1/settings/book-cost", h.handleBookCost)
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listOrders(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleOrderByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	id := trimmed
	action := ""
	if slash := strings.LastIndex(trimmed, "/"); slash >= 0 {
		id = trimmed[:slash]
		action = trimmed[slash+1:]
	}
	if id == "" {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	order, ok := h.scheduler.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}

	if action == "" {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
		case http.MethodDelete:
			h.deleteOrder(w, r, order)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	switch action {
	case "confirm":
		h.confirmOrder(w, r, order)
	case "assign":
		h.assignAgent(w, r, order)
	case "delivery":
		h.updateDelivery(w, r, order)
	case "books":
		h.updateBooks(w, r, order)
	case "amount":
		h.updateAmount(w, r, order)
	case "office-charge":
		h.updateOfficeCharge(w, r, order)
	case "address":
		h.updateAddress(w, r, order)
	case "item":
		h.updateItem(w, r, order)
	default:
		writeError(w, http.StatusNotFound, "unknown order action")
	}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := ingest.QueryFilter{}
	if start, ok := parseDate(query.Get("start_date")); ok {
		filter.StartDate = &start
	}
	if end, ok := parseDate(query.Get("end_date")); ok {
		filter.EndDate = &end
	}
	if confirmed, ok := parseBool(query.Get("confirmed")); ok {
		filter.Confirmed = &confirmed
	}
	if assigned, ok := parseBool(query.Get("assigned")); ok {
		filter.Assigned = &assigned
	}
	if statusParam := query.Get("delivery_status"); statusParam != "" {
		status := domain.DeliveryStatus(statusParam)
		filter.DeliveryStatus = &status
	}
	for _, itemParam := range splitParam(query.Get("items")) {
		filter.Items = append(filter.Items, domain.OrderItem(itemParam))
	}
	filter.Sources = splitParam(query.Get("sources"))
	filter.AgentID = query.Get("agent_id")
	filter.Phone = query.Get("phone")

	page := 1
	if pageParam := query.Get("page"); pageParam != "" {
		if parsed, err := strconv.Atoi(pageParam); err == nil {
			page = parsed
		}
	}
	if pageSizeParam := query.Get("page_size"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			filter.Limit = pageSize
		}
	}

	if err := h.scheduler.FetchOrders(r.Context(), page, filter); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	orders := h.scheduler.Orders()
	views := make([]orderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, h.view(order))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"orders": views,
		"total":  h.scheduler.TotalOrders(),
	})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	if err := h.scheduler.DeleteOrder(r.Context(), order); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	if err := h.service.ConfirmOrder(r.Context(), order); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) assignAgent(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.service.AssignAgent(r.Context(), order, payload.AgentID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) updateDelivery(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		Status       string `json:"status"`
		DeliveryCost int64  `json:"delivery_cost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	status := domain.DeliveryStatus(payload.Status)
	if status != domain.DeliveryPending && status != domain.DeliveryDelivered {
		writeError(w, http.StatusBadRequest, "invalid delivery status")
		return
	}
	if err := h.service.UpdateDelivery(r.Context(), order, status, payload.DeliveryCost); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) updateBooks(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		Books domain.BookConfig `json:"books"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.service.UpdateBookConfiguration(r.Context(), order, payload.Books); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) updateAmount(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.service.UpdateAmount(r.Context(), order, payload.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) updateOfficeCharge(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.service.UpdateOfficeCharge(r.Context(), order, payload.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) updateAddress(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		State   string `json:"state"`
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.service.UpdateAddress(r.Context(), order, payload.State, payload.Address); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request, order *domain.Order) {
	var payload struct {
		Item string `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.service.UpdateOrderItem(r.Context(), order, domain.OrderItem(payload.Item)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": h.view(order)})
}

func (h *Handler) handleBookCost(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"cost_per_book": h.service.CostPerBook()})
	case http.MethodPut:
		var payload struct {
			CostPerBook int64 `json:"cost_per_book"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON payload")
			return
		}
		if err := h.service.SetCostPerBook(r.Context(), payload.CostPerBook); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cost_per_book": h.service.CostPerBook()})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// orderView decorates an order with the figures derived from the current
// per-book cost, so clients never recompute money locally.
type orderView struct {
	*domain.Order

	UID              string `json:"uid"`
	IsNew            bool   `json:"is_new"`
	ActualCost       int64  `json:"actual_cost"`
	AffiliateEarning int64  `json:"affiliate_earning"`
	AgentEarning     int64  `json:"agent_earning"`
}

func (h *Handler) view(order *domain.Order) orderView {
	costPerBook := h.service.CostPerBook()
	return orderView{
		Order:            order,
		UID:              order.UniqueID(),
		IsNew:            order.IsNew(time.Now()),
		ActualCost:       order.ActualCost(costPerBook),
		AffiliateEarning: order.AffiliateEarning(costPerBook),
		AgentEarning:     order.AgentEarning(),
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	var stockErr *agentdomain.InsufficientStockError
	switch {
	case errors.Is(err, domain.ErrOrderImmutable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAmountExceeded),
		errors.Is(err, domain.ErrNoBooks),
		errors.Is(err, domain.ErrMissingDeliveryCost),
		errors.Is(err, domain.ErrNoAgent),
		errors.Is(err, domain.ErrTransitionNotSupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ports.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func parseBool(value string) (bool, bool) {
	if value == "" {
		return false, false
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, false
	}
	return parsed, true
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	var parts []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
