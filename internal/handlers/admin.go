package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/havenlab/apiserver/internal/auth"
	"github.com/havenlab/apiserver/internal/services"
)

// AdminHandler exposes the identity-synchronizer and account-management
// endpoints. All routes require the manage-users capability.
type AdminHandler struct {
	syncService *services.SyncService
	userService *services.UserService
}

func NewAdminHandler(syncService *services.SyncService, userService *services.UserService) *AdminHandler {
	return &AdminHandler{syncService: syncService, userService: userService}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(r chi.Router, syncService *services.SyncService, userService *services.UserService) {
	handler := NewAdminHandler(syncService, userService)

	r.Use(RequireCapability(auth.CapManageUsers))
	r.Post("/sync", handler.SyncUser)
	r.Post("/role", handler.SetRole)
	r.Post("/approve", handler.ApproveUser)
	r.Get("/diagnose/{userID}", handler.Diagnose)
	r.Get("/lookup", handler.LookupByEmail)
	r.Get("/users", handler.ListUsers)
	r.Post("/users/{userID}/deactivate", handler.DeactivateUser)
	r.Post("/users/{userID}/reactivate", handler.ReactivateUser)
	r.Delete("/users/{userID}", handler.RemoveUser)
}

type targetUserRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type setRoleRequest struct {
	TargetUserID string `json:"targetUserId"`
	Role         string `json:"role"`
	Approved     *bool  `json:"approved,omitempty"`
}

type syncResponse struct {
	UserID        string `json:"userId"`
	Role          string `json:"role"`
	Approved      bool   `json:"approved"`
	InDatabase    bool   `json:"inDatabase"`
	Created       bool   `json:"created,omitempty"`
	WasConsistent bool   `json:"wasConsistent,omitempty"`
}

// SyncUser reconciles one user's role/approval between the identity provider
// and the local record.
func (h *AdminHandler) SyncUser(w http.ResponseWriter, r *http.Request) {
	var req targetUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.TargetUserID = strings.TrimSpace(req.TargetUserID)
	if req.TargetUserID == "" {
		writeError(w, http.StatusBadRequest, "targetUserId is required")
		return
	}

	result, err := h.syncService.SyncUser(r.Context(), req.TargetUserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: syncResponse{
		UserID:        result.UserID,
		Role:          result.Role,
		Approved:      result.Approved,
		InDatabase:    true,
		Created:       result.Created,
		WasConsistent: result.WasConsistent,
	}})
}

// SetRole assigns a role; approval defaults by policy when omitted.
func (h *AdminHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.TargetUserID = strings.TrimSpace(req.TargetUserID)
	if req.TargetUserID == "" {
		writeError(w, http.StatusBadRequest, "targetUserId is required")
		return
	}

	result, err := h.syncService.SetRole(r.Context(), req.TargetUserID, req.Role, req.Approved)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: result})
}

// ApproveUser flips approval on both sides without touching the role.
func (h *AdminHandler) ApproveUser(w http.ResponseWriter, r *http.Request) {
	var req targetUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.TargetUserID = strings.TrimSpace(req.TargetUserID)
	if req.TargetUserID == "" {
		writeError(w, http.StatusBadRequest, "targetUserId is required")
		return
	}

	result, err := h.syncService.ApproveUser(r.Context(), req.TargetUserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: result})
}

// Diagnose reports both sides of the identity mirror and any mismatches,
// without writing anything.
func (h *AdminHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	snapshot, err := h.syncService.LoadSnapshot(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: snapshot})
}

// LookupByEmail locates provider accounts by email and reports each one's
// mirror state.
func (h *AdminHandler) LookupByEmail(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	snapshots, err := h.syncService.LookupByEmail(r.Context(), email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: snapshots})
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	_, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: users})
}

func (h *AdminHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Deactivate(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *AdminHandler) ReactivateUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Reactivate(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *AdminHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Remove(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
