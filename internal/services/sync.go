package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/havenlab/apiserver/internal/events"
	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
	"go.uber.org/zap"
)

// UserStore defines the persistence operations the synchronizer needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetRoleState(ctx context.Context, id, role string, approved, active bool) error
	GetStaffProfile(ctx context.Context, userID string) (types.StaffProfile, error)
	CreateStaffProfile(ctx context.Context, profile types.StaffProfile) error
}

// SyncResult reports the canonical state after a sync.
type SyncResult struct {
	UserID        string `json:"userId"`
	Role          string `json:"role"`
	Approved      bool   `json:"approved"`
	Created       bool   `json:"created"`
	WasConsistent bool   `json:"wasConsistent"`
}

// SyncService reconciles the identity provider's metadata with the local user
// record. Each operation is idempotent and invocable at any time; divergence
// is repaired on the next call rather than hidden.
type SyncService struct {
	provider identity.Provider
	users    UserStore
	bus      *events.Bus
	logger   *zap.Logger
}

func NewSyncService(provider identity.Provider, users UserStore, bus *events.Bus, logger *zap.Logger) *SyncService {
	return &SyncService{
		provider: provider,
		users:    users,
		bus:      bus,
		logger:   logger,
	}
}

// SyncUser produces one canonical {role, approved} pair for the user and
// makes both stores reflect it. The provider is the source of truth when the
// two sides disagree; the one exception is a brand-new user with no provider
// role at all, whose local defaults (guest, auto-approved) are pushed up so
// both sides start consistent.
func (s *SyncService) SyncUser(ctx context.Context, userID string) (SyncResult, error) {
	acct, err := s.provider.GetUser(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}

	role := acct.Metadata.Role
	approved := acct.Metadata.Approved
	if !acct.Metadata.HasRole {
		role = types.RoleGuest
	}

	local, err := s.users.GetByID(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.createFromProvider(ctx, acct)
	case err != nil:
		return SyncResult{}, &PersistenceError{Side: "local", Err: err}
	}

	if local.Role == role && local.Approved == approved {
		return SyncResult{
			UserID:        userID,
			Role:          role,
			Approved:      approved,
			WasConsistent: true,
		}, nil
	}

	// Divergence: the provider wins for this direction.
	if err := s.users.SetRoleState(ctx, userID, role, approved, true); err != nil {
		return SyncResult{}, &PersistenceError{Side: "local", Err: err}
	}

	s.logger.Info("repaired identity divergence",
		zap.String("user_id", userID),
		zap.String("local_role", local.Role),
		zap.String("provider_role", role))
	s.emit(ctx, events.TopicUserSynced, SyncResult{UserID: userID, Role: role, Approved: approved})

	return SyncResult{UserID: userID, Role: role, Approved: approved}, nil
}

func (s *SyncService) createFromProvider(ctx context.Context, acct identity.Account) (SyncResult, error) {
	role := acct.Metadata.Role
	approved := acct.Metadata.Approved

	if !acct.Metadata.HasRole {
		// Brand-new user: push the local defaults up to the provider.
		role = types.RoleGuest
		approved = true
		if err := s.provider.UpdateMetadata(ctx, acct.ID, identity.Metadata{Role: role, Approved: approved}); err != nil {
			return SyncResult{}, err
		}
	}

	user := types.User{
		ID:       acct.ID,
		Role:     role,
		Approved: approved,
		IsActive: !acct.Banned,
		Name:     acct.Name,
		Email:    acct.Email,
		Phone:    acct.Phone,
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return SyncResult{}, &PersistenceError{Side: "local", Err: err}
	}

	s.logger.Info("created local user from provider",
		zap.String("user_id", acct.ID),
		zap.String("role", role))
	s.emit(ctx, events.TopicUserSynced, SyncResult{UserID: acct.ID, Role: role, Approved: approved, Created: true})

	return SyncResult{UserID: acct.ID, Role: role, Approved: approved, Created: true}, nil
}

// SetRole assigns a role on both sides. When approved is nil the approval
// defaults by policy: guests are auto-approved, staff and admin start
// unapproved. The provider is written first; a local failure afterwards
// leaves the sides divergent and is surfaced as a PersistenceError so the
// caller can retry with SyncUser.
func (s *SyncService) SetRole(ctx context.Context, userID, role string, approved *bool) (SyncResult, error) {
	if !types.AssignableRole(role) {
		return SyncResult{}, fmt.Errorf("%w: role %q", store.ErrInvalidArgument, role)
	}

	approvedVal := role == types.RoleGuest
	if approved != nil {
		approvedVal = *approved
	}

	if err := s.provider.UpdateMetadata(ctx, userID, identity.Metadata{Role: role, Approved: approvedVal}); err != nil {
		return SyncResult{}, err
	}

	err := s.users.SetRoleState(ctx, userID, role, approvedVal, true)
	if errors.Is(err, store.ErrNotFound) {
		acct, getErr := s.provider.GetUser(ctx, userID)
		if getErr != nil {
			return SyncResult{}, getErr
		}
		_, err = s.users.Create(ctx, types.User{
			ID:       userID,
			Role:     role,
			Approved: approvedVal,
			IsActive: true,
			Name:     acct.Name,
			Email:    acct.Email,
			Phone:    acct.Phone,
		})
	}
	if err != nil {
		return SyncResult{}, &PersistenceError{Side: "local", Err: err}
	}

	if role == types.RoleStaff {
		if err := s.ensureStaffProfile(ctx, userID); err != nil {
			s.logger.Warn("staff profile creation failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.emit(ctx, events.TopicRoleChanged, SyncResult{UserID: userID, Role: role, Approved: approvedVal})
	return SyncResult{UserID: userID, Role: role, Approved: approvedVal}, nil
}

// ApproveUser sets approved=true on both sides without changing the role.
func (s *SyncService) ApproveUser(ctx context.Context, userID string) (SyncResult, error) {
	acct, err := s.provider.GetUser(ctx, userID)
	if err != nil {
		return SyncResult{}, err
	}

	role := acct.Metadata.Role
	if !acct.Metadata.HasRole {
		role = types.RoleGuest
	}

	if err := s.provider.UpdateMetadata(ctx, userID, identity.Metadata{Role: role, Approved: true}); err != nil {
		return SyncResult{}, err
	}
	if err := s.users.SetRoleState(ctx, userID, role, true, true); err != nil {
		return SyncResult{}, &PersistenceError{Side: "local", Err: err}
	}

	s.emit(ctx, events.TopicRoleChanged, SyncResult{UserID: userID, Role: role, Approved: true})
	return SyncResult{UserID: userID, Role: role, Approved: true}, nil
}

// LoadSnapshot reads both sides of the identity mirror without writing.
func (s *SyncService) LoadSnapshot(ctx context.Context, userID string) (types.IdentitySnapshot, error) {
	acct, err := s.provider.GetUser(ctx, userID)
	if err != nil {
		return types.IdentitySnapshot{}, err
	}

	snapshot := types.IdentitySnapshot{
		UserID:           userID,
		ProviderRole:     acct.Metadata.Role,
		ProviderApproved: acct.Metadata.Approved,
	}

	local, err := s.users.GetByID(ctx, userID)
	if err == nil {
		snapshot.InDatabase = true
		snapshot.DBRole = local.Role
		snapshot.DBApproved = local.Approved
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.IdentitySnapshot{}, &PersistenceError{Side: "local", Err: err}
	}

	snapshot.Issues = Diagnose(snapshot)
	return snapshot, nil
}

// LookupByEmail finds every provider account registered under an email
// address and reports each one's mirror state. Used by admins to locate a
// user whose id is unknown.
func (s *SyncService) LookupByEmail(ctx context.Context, email string) ([]types.IdentitySnapshot, error) {
	accounts, err := s.provider.ListUsersByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	snapshots := make([]types.IdentitySnapshot, 0, len(accounts))
	for _, acct := range accounts {
		snapshot := types.IdentitySnapshot{
			UserID:           acct.ID,
			ProviderRole:     acct.Metadata.Role,
			ProviderApproved: acct.Metadata.Approved,
		}

		local, err := s.users.GetByID(ctx, acct.ID)
		if err == nil {
			snapshot.InDatabase = true
			snapshot.DBRole = local.Role
			snapshot.DBApproved = local.Approved
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, &PersistenceError{Side: "local", Err: err}
		}

		snapshot.Issues = Diagnose(snapshot)
		snapshots = append(snapshots, snapshot)
	}
	return snapshots, nil
}

// Diagnose lists human-readable mismatches in a loaded snapshot. Pure
// function, used by the admin troubleshooting endpoint.
func Diagnose(s types.IdentitySnapshot) []string {
	var issues []string
	if s.ProviderRole == "" {
		issues = append(issues, "provider has no role set")
	}
	if !s.InDatabase {
		issues = append(issues, "no local user record")
		return issues
	}
	if s.ProviderRole != "" && s.ProviderRole != s.DBRole {
		issues = append(issues, fmt.Sprintf("role mismatch: provider %q, database %q", s.ProviderRole, s.DBRole))
	}
	if s.ProviderApproved != s.DBApproved {
		issues = append(issues, fmt.Sprintf("approval mismatch: provider %t, database %t", s.ProviderApproved, s.DBApproved))
	}
	if !s.DBApproved && s.DBRole != types.RoleGuest {
		issues = append(issues, "user is awaiting approval")
	}
	return issues
}

func (s *SyncService) ensureStaffProfile(ctx context.Context, userID string) error {
	_, err := s.users.GetStaffProfile(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Convenience default, not collision-proof.
	employeeID := fmt.Sprintf("EMP%06d", time.Now().UnixMilli()%1000000)
	return s.users.CreateStaffProfile(ctx, types.StaffProfile{
		UserID:     userID,
		EmployeeID: employeeID,
	})
}

func (s *SyncService) emit(ctx context.Context, topic string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Emit(ctx, topic, payload); err != nil {
		s.logger.Warn("event publish failed", zap.String("topic", topic), zap.Error(err))
	}
}
