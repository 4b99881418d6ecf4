package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bookworks/backoffice/internal/stats"
)

// Handler exposes HTTP endpoints for aggregate order statistics.
type Handler struct {
	provider stats.Provider
}

func NewHandler(provider stats.Provider) *Handler {
	return &Handler{provider: provider}
}

// Register binds the stats handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/stats/earnings", h.handleEarnings)
	mux.HandleFunc("/v1/stats/orders", h.handleOrders)
}

func (h *Handler) handleEarnings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, end, ok := parseRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	filter := parseFilter(r)

	if r.URL.Query().Get("granularity") == "month" {
		earnings, err := h.provider.EarningByMonth(r.Context(), start, end, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"earnings": earnings})
		return
	}

	earnings, err := h.provider.EarningByDay(r.Context(), start, end, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	balance := stats.Balance{Days: earnings}
	balance.Refresh()
	writeJSON(w, http.StatusOK, map[string]any{"earnings": earnings, "total": balance.Total})
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	start, end, ok := parseRange(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "start_date and end_date are required")
		return
	}
	filter := parseFilter(r)

	if r.URL.Query().Get("granularity") == "month" {
		counts, err := h.provider.OrdersByMonth(r.Context(), start, end, filter)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"orders": counts})
		return
	}

	counts, err := h.provider.OrdersByDay(r.Context(), start, end, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": counts})
}

// parseFilter reads the optional agent and source-set narrowing. The sources
// parameter carries an affiliate's attributed source names, comma separated.
func parseFilter(r *http.Request) stats.Filter {
	query := r.URL.Query()

	filter := stats.Filter{AgentID: query.Get("agent_id")}
	if raw := query.Get("sources"); raw != "" {
		for _, source := range strings.Split(raw, ",") {
			if source = strings.TrimSpace(source); source != "" {
				filter.Sources = append(filter.Sources, source)
			}
		}
	}
	return filter
}

func parseRange(r *http.Request) (time.Time, time.Time, bool) {
	query := r.URL.Query()

	start, err := parseDate(query.Get("start_date"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	end, err := parseDate(query.Get("end_date"))
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func parseDate(value string) (time.Time, error) {
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
