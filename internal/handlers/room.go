package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/havenlab/apiserver/internal/auth"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/types"
)

type RoomHandler struct {
	rooms *services.RoomService
}

func NewRoomHandler(rooms *services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// RoomRouter registers room inventory routes on the given router.
func RoomRouter(r chi.Router, rooms *services.RoomService) {
	handler := NewRoomHandler(rooms)

	r.Use(RequireCapability(auth.CapManageBookings))
	r.Post("/", handler.Create)
	r.Get("/", handler.List)
	r.Get("/{roomID}", handler.Get)
	r.Put("/{roomID}", handler.Update)
	r.Delete("/{roomID}", handler.Delete)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var room types.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.rooms.Create(r.Context(), room)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SuccessResponse{Success: true, Data: created})
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.rooms.Get(r.Context(), chi.URLParam(r, "roomID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: room})
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: rooms})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	var room types.Room
	if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	room.ID = chi.URLParam(r, "roomID")

	updated, err := h.rooms.Update(r.Context(), room)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Data: updated})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.Delete(r.Context(), chi.URLParam(r, "roomID")); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
