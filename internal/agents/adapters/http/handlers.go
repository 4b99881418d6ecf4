package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/bookworks/backoffice/internal/agents/app"
	"github.com/bookworks/backoffice/internal/agents/domain"
	"github.com/bookworks/backoffice/internal/agents/ports"
)

// Handler exposes HTTP endpoints for agent management.
type Handler struct {
	service *app.Service
}

func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register binds the agent handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/agents", h.handleAgents)
	mux.HandleFunc("/v1/agents/", h.handleAgentByID)
}

func (h *Handler) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createAgent(w, r)
	case http.MethodGet:
		h.listAgents(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/v1/agents/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		writeError(w, http.StatusNotFound, "agent not found")
		return
	}

	if id, ok := strings.CutSuffix(trimmed, "/books"); ok {
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.updateBooks(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.getAgent(w, r, trimmed)
}

func (h *Handler) createAgent(w http.ResponseWriter, r *http.Request) {
	var payload app.CreateAgentInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	agent, err := h.service.CreateAgent(r.Context(), payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"agent": agent})
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request, id string) {
	agent, err := h.service.GetAgent(r.Context(), id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": agent})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := ports.ListFilter{
		Search: query.Get("search"),
		State:  query.Get("state"),
	}
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

	agents, total, err := h.service.ListAgents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents, "total": total})
}

func (h *Handler) updateBooks(w http.ResponseWriter, r *http.Request, id string) {
	var payload struct {
		Books domain.Books `json:"books"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	agent, err := h.service.UpdateBooks(r.Context(), id, payload.Books)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": agent})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
