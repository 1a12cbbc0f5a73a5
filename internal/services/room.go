package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
)

// RoomRepository defines persistence operations for rooms.
type RoomRepository interface {
	GetByID(ctx context.Context, id string) (types.Room, error)
	Create(ctx context.Context, room types.Room) (types.Room, error)
	List(ctx context.Context) ([]types.Room, error)
	Update(ctx context.Context, room types.Room) (types.Room, error)
	Delete(ctx context.Context, id string) error
}

// RoomService encapsulates room inventory use-cases.
type RoomService struct {
	repo RoomRepository
}

func NewRoomService(repo RoomRepository) *RoomService {
	return &RoomService{repo: repo}
}

func (s *RoomService) Create(ctx context.Context, room types.Room) (types.Room, error) {
	room.Number = strings.TrimSpace(room.Number)
	if room.Number == "" {
		return types.Room{}, fmt.Errorf("%w: room number is required", store.ErrInvalidArgument)
	}
	room.ID = uuid.NewString()
	room.Available = true
	return s.repo.Create(ctx, room)
}

func (s *RoomService) Get(ctx context.Context, id string) (types.Room, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *RoomService) List(ctx context.Context) ([]types.Room, error) {
	return s.repo.List(ctx)
}

func (s *RoomService) Update(ctx context.Context, room types.Room) (types.Room, error) {
	return s.repo.Update(ctx, room)
}

func (s *RoomService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
