package store

import (
	"context"
	"errors"
	"time"

	"github.com/havenlab/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// RoomRepository handles persistence for hotel room inventory.
type RoomRepository struct {
	rooms *mongo.Collection
}

func NewRoomRepository(db *mongo.Database) *RoomRepository {
	return &RoomRepository{rooms: db.Collection("rooms")}
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (types.Room, error) {
	var room types.Room
	err := r.rooms.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Room{}, ErrNotFound
		}
		return types.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) Create(ctx context.Context, room types.Room) (types.Room, error) {
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now

	if _, err := r.rooms.InsertOne(ctx, room); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.Room{}, ErrConflict
		}
		return types.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) List(ctx context.Context) ([]types.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "number", Value: 1}})
	cursor, err := r.rooms.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rooms []types.Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *RoomRepository) Update(ctx context.Context, room types.Room) (types.Room, error) {
	room.UpdatedAt = time.Now()
	result, err := r.rooms.ReplaceOne(ctx, bson.M{"_id": room.ID}, room)
	if err != nil {
		return types.Room{}, err
	}
	if result.MatchedCount == 0 {
		return types.Room{}, ErrNotFound
	}
	return room, nil
}

func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	result, err := r.rooms.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
