package services

import (
	"context"

	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/types"
	"go.uber.org/zap"
)

// UserDirectory is the wider user-store surface used for account management.
type UserDirectory interface {
	UserStore
	List(ctx context.Context, offset, limit int) ([]types.User, error)
	SoftDelete(ctx context.Context, id string) error
}

// UserService manages accounts across both sides of the identity mirror.
// Deactivation bans the provider account and soft-deletes the local record;
// nothing is ever hard-deleted locally.
type UserService struct {
	provider identity.Provider
	users    UserDirectory
	logger   *zap.Logger
}

func NewUserService(provider identity.Provider, users UserDirectory, logger *zap.Logger) *UserService {
	return &UserService{provider: provider, users: users, logger: logger}
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.users.List(ctx, offset, limit)
}

// Deactivate bans the provider account first, then soft-deletes locally. The
// same non-transactional caveat as role writes applies: a local failure
// after the ban leaves the sides divergent until the next sync.
func (s *UserService) Deactivate(ctx context.Context, id string) error {
	if err := s.provider.BanUser(ctx, id); err != nil {
		return err
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return &PersistenceError{Side: "local", Err: err}
	}
	s.logger.Info("user deactivated", zap.String("user_id", id))
	return nil
}

// Reactivate lifts the provider ban and reactivates the local record with
// its current role and approval unchanged.
func (s *UserService) Reactivate(ctx context.Context, id string) error {
	if err := s.provider.UnbanUser(ctx, id); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return &PersistenceError{Side: "local", Err: err}
	}
	if err := s.users.SetRoleState(ctx, id, user.Role, user.Approved, true); err != nil {
		return &PersistenceError{Side: "local", Err: err}
	}
	s.logger.Info("user reactivated", zap.String("user_id", id))
	return nil
}

// Remove deletes the provider account and soft-deletes the local record,
// which is retained for audit.
func (s *UserService) Remove(ctx context.Context, id string) error {
	if err := s.provider.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return &PersistenceError{Side: "local", Err: err}
	}
	s.logger.Info("user removed", zap.String("user_id", id))
	return nil
}
