package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/perkpoint/loyalty-platform/services/auth/internal/domain"
)

// ListUsers returns a page of users (admin only)
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.authService.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]*domain.UserInfo, len(users))
	for i := range users {
		out[i] = users[i].ToUserInfo()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":  out,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser returns a single user by ID (admin only)
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_INPUT")
		return
	}

	user, err := h.authService.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user.ToUserInfo())
}

// AssignRoles grants roles to a user (admin only)
func (h *Handlers) AssignRoles(w http.ResponseWriter, r *http.Request) {
	h.updateRoles(w, r, h.authService.AssignRoles)
}

// RevokeRoles removes roles from a user (admin only)
func (h *Handlers) RevokeRoles(w http.ResponseWriter, r *http.Request) {
	h.updateRoles(w, r, h.authService.RevokeRoles)
}

func (h *Handlers) updateRoles(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID int64, roles []string) ([]string, error)) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_INPUT")
		return
	}

	var req domain.UpdateRolesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format", "INVALID_INPUT")
		return
	}

	roles, err := apply(r.Context(), id, req.Roles)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": id,
		"roles":   roles,
	})
}

// SetStatus changes a user's account status (admin only)
func (h *Handlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid user ID", "INVALID_INPUT")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeError(w, http.StatusBadRequest, "Status is required", "INVALID_INPUT")
		return
	}

	if err := h.authService.SetStatus(r.Context(), id, domain.Status(req.Status)); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": id,
		"status":  req.Status,
	})
}
