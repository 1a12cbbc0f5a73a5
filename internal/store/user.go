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

// UserRepository handles persistence for local user records.
type UserRepository struct {
	users *mongo.Collection
	staff *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		users: db.Collection("users"),
		staff: db.Collection("staff_profiles"),
	}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	var user types.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, ErrConflict
		}
		return types.User{}, err
	}
	return user, nil
}

// SetRoleState overwrites the authoritative fields on the local record with a
// single atomic update.
func (r *UserRepository) SetRoleState(ctx context.Context, id, role string, approved, active bool) error {
	result, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"role":       role,
			"approved":   approved,
			"is_active":  active,
			"updated_at": time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDelete marks the record inactive. Users are never hard-deleted.
func (r *UserRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now()
	result, err := r.users.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"is_active":  false,
			"deleted_at": now,
			"updated_at": now,
		},
	})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	opts := options.Find().
		SetSkip(int64(offset)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.users.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := make([]types.User, 0, limit)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepository) GetStaffProfile(ctx context.Context, userID string) (types.StaffProfile, error) {
	var profile types.StaffProfile
	err := r.staff.FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.StaffProfile{}, ErrNotFound
		}
		return types.StaffProfile{}, err
	}
	return profile, nil
}

func (r *UserRepository) CreateStaffProfile(ctx context.Context, profile types.StaffProfile) error {
	profile.CreatedAt = time.Now()
	if _, err := r.staff.InsertOne(ctx, profile); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}
