package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/havenlab/apiserver/internal/auth"
	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/internal/store"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse is the envelope for mutation endpoints.
type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func principalFromContext(ctx context.Context) auth.Principal {
	if p, ok := ctx.Value(contextPrincipalKey).(auth.Principal); ok {
		return p
	}
	return auth.Principal{}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var providerErr *identity.ProviderError
	var persistErr *services.PersistenceError

	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, identity.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "conflicting write, retry")
	case errors.As(err, &providerErr):
		writeError(w, http.StatusBadGateway, "identity provider unavailable")
	case errors.As(err, &persistErr):
		// Tell the caller which side landed so a retry can repair.
		writeError(w, http.StatusInternalServerError, persistErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// Healthz is a minimal liveness endpoint.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = 1
	limit = 20

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}
