package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bookworks/backoffice/internal/affiliates/domain"
	"github.com/bookworks/backoffice/internal/affiliates/ports"
	"github.com/google/uuid"
)

// Handler exposes HTTP endpoints for affiliate management.
type Handler struct {
	repo ports.Repository
}

func NewHandler(repo ports.Repository) *Handler {
	return &Handler{repo: repo}
}

// Register binds the affiliate handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/affiliates", h.handleAffiliates)
	mux.HandleFunc("/v1/affiliates/", h.handleAffiliateByID)
}

func (h *Handler) handleAffiliates(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createAffiliate(w, r)
	case http.MethodGet:
		h.listAffiliates(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleAffiliateByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/affiliates/")
	id = strings.TrimSuffix(id, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "affiliate not found")
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	affiliate, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "affiliate not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"affiliate": affiliate})
}

func (h *Handler) createAffiliate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Fullname   string   `json:"fullname"`
		Phone      string   `json:"phone"`
		Email      string   `json:"email"`
		SourceList []string `json:"source_list"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(payload.Fullname) == "" {
		writeError(w, http.StatusBadRequest, "fullname is required")
		return
	}

	affiliate := &domain.Affiliate{
		ID:         uuid.NewString(),
		Fullname:   payload.Fullname,
		Phone:      payload.Phone,
		Email:      payload.Email,
		SourceList: payload.SourceList,
	}
	if err := h.repo.Upsert(r.Context(), affiliate); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"affiliate": affiliate})
}

func (h *Handler) listAffiliates(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := ports.ListFilter{Search: query.Get("search")}
	if pageParam := query.Get("page"); pageParam != "" {
		if page, err := strconv.Atoi(pageParam); err == nil {
			filter.Page = page
		}
	}
	if pageSizeParam := query.Get("page_size"); pageSizeParam != "" {
		if pageSize, err := strconv.Atoi(pageSizeParam); err == nil {
			filter.PageSize = pageSize
		}
	}

	affiliates, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"affiliates": affiliates, "total": total})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
