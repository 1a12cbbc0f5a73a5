package services

import (
	"context"
	"errors"
	"testing"

	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	accounts map[string]identity.Account
	// updateErr fails UpdateMetadata, simulating a provider outage.
	updateErr error
	updates   int
}

func newFakeProvider(accounts ...identity.Account) *fakeProvider {
	p := &fakeProvider{accounts: make(map[string]identity.Account)}
	for _, a := range accounts {
		p.accounts[a.ID] = a
	}
	return p
}

func (p *fakeProvider) GetUser(_ context.Context, id string) (identity.Account, error) {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.Account{}, identity.ErrUserNotFound
	}
	return acct, nil
}

func (p *fakeProvider) UpdateMetadata(_ context.Context, id string, md identity.Metadata) error {
	if p.updateErr != nil {
		return p.updateErr
	}
	acct, ok := p.accounts[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	md.HasRole = true
	acct.Metadata = md
	p.accounts[id] = acct
	p.updates++
	return nil
}

func (p *fakeProvider) ListUsersByEmail(_ context.Context, email string) ([]identity.Account, error) {
	var out []identity.Account
	for _, a := range p.accounts {
		if a.Email == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (p *fakeProvider) BanUser(_ context.Context, id string) error {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	acct.Banned = true
	p.accounts[id] = acct
	return nil
}

func (p *fakeProvider) UnbanUser(_ context.Context, id string) error {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	acct.Banned = false
	p.accounts[id] = acct
	return nil
}

func (p *fakeProvider) DeleteUser(_ context.Context, id string) error {
	if _, ok := p.accounts[id]; !ok {
		return identity.ErrUserNotFound
	}
	delete(p.accounts, id)
	return nil
}

type fakeUserStore struct {
	users    map[string]types.User
	profiles map[string]types.StaffProfile
	// setErr fails SetRoleState, simulating a local write failure after the
	// provider write already landed.
	setErr error
}

func newFakeUserStore(users ...types.User) *fakeUserStore {
	s := &fakeUserStore{
		users:    make(map[string]types.User),
		profiles: make(map[string]types.StaffProfile),
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (types.User, error) {
	u, ok := s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) Create(_ context.Context, user types.User) (types.User, error) {
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeUserStore) SetRoleState(_ context.Context, id, role string, approved, active bool) error {
	if s.setErr != nil {
		return s.setErr
	}
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	u.Approved = approved
	u.IsActive = active
	s.users[id] = u
	return nil
}

func (s *fakeUserStore) GetStaffProfile(_ context.Context, userID string) (types.StaffProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return types.StaffProfile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *fakeUserStore) CreateStaffProfile(_ context.Context, profile types.StaffProfile) error {
	s.profiles[profile.UserID] = profile
	return nil
}

func providerAccount(id, role string, approved bool) identity.Account {
	return identity.Account{
		ID:    id,
		Name:  "Test User",
		Email: id + "@example.com",
		Metadata: identity.Metadata{
			Role:     role,
			Approved: approved,
			HasRole:  role != "",
		},
	}
}

func newTestSync(provider identity.Provider, users UserStore) *SyncService {
	return NewSyncService(provider, users, nil, zap.NewNop())
}

func TestSyncUserConsistentIsIdempotent(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleStaff, true))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleStaff, Approved: true, IsActive: true})
	sync := newTestSync(provider, users)

	for i := 0; i < 3; i++ {
		result, err := sync.SyncUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, result.WasConsistent)
		assert.Equal(t, types.RoleStaff, result.Role)
		assert.True(t, result.Approved)
	}
	assert.Zero(t, provider.updates)
}

func TestSyncUserProviderWinsOnDivergence(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleAdmin, true))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleStaff, Approved: false, IsActive: true})
	sync := newTestSync(provider, users)

	result, err := sync.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, result.WasConsistent)
	assert.Equal(t, types.RoleAdmin, result.Role)
	assert.True(t, result.Approved)

	local, _ := users.GetByID(context.Background(), "u1")
	assert.Equal(t, types.RoleAdmin, local.Role)
	assert.True(t, local.Approved)
}

func TestSyncUserCreatesMissingLocalRecord(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleLab, true))
	users := newFakeUserStore()
	sync := newTestSync(provider, users)

	result, err := sync.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, types.RoleLab, result.Role)

	local, err := users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", local.Email)
	assert.True(t, local.IsActive)
}

func TestSyncUserPushesDefaultsUpForBrandNewUser(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", "", false))
	users := newFakeUserStore()
	sync := newTestSync(provider, users)

	result, err := sync.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Equal(t, types.RoleGuest, result.Role)
	assert.True(t, result.Approved)

	// Both sides end up with the default pair.
	acct, _ := provider.GetUser(context.Background(), "u1")
	assert.Equal(t, types.RoleGuest, acct.Metadata.Role)
	assert.True(t, acct.Metadata.Approved)
}

func TestSyncUserUnknownProviderAccount(t *testing.T) {
	sync := newTestSync(newFakeProvider(), newFakeUserStore())

	_, err := sync.SyncUser(context.Background(), "missing")
	require.ErrorIs(t, err, identity.ErrUserNotFound)
}

func TestSetRoleApprovalDefaults(t *testing.T) {
	cases := []struct {
		role         string
		wantApproved bool
	}{
		{types.RoleGuest, true},
		{types.RoleStaff, false},
		{types.RoleAdmin, false},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			provider := newFakeProvider(providerAccount("u1", types.RoleGuest, true))
			users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleGuest, Approved: true})
			sync := newTestSync(provider, users)

			result, err := sync.SetRole(context.Background(), "u1", tc.role, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.wantApproved, result.Approved)

			acct, _ := provider.GetUser(context.Background(), "u1")
			assert.Equal(t, tc.role, acct.Metadata.Role)
			assert.Equal(t, tc.wantApproved, acct.Metadata.Approved)
		})
	}
}

func TestSetRoleExplicitApprovalOverridesDefault(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleGuest, true))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleGuest, Approved: true})
	sync := newTestSync(provider, users)

	approved := true
	result, err := sync.SetRole(context.Background(), "u1", types.RoleStaff, &approved)
	require.NoError(t, err)
	assert.True(t, result.Approved)
}

func TestSetRoleRejectsUnknownRole(t *testing.T) {
	sync := newTestSync(newFakeProvider(), newFakeUserStore())

	_, err := sync.SetRole(context.Background(), "u1", "superuser", nil)
	require.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestSetRoleCreatesStaffProfile(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleGuest, true))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleGuest, Approved: true})
	sync := newTestSync(provider, users)

	_, err := sync.SetRole(context.Background(), "u1", types.RoleStaff, nil)
	require.NoError(t, err)

	profile, err := users.GetStaffProfile(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotEmpty(t, profile.EmployeeID)
}

func TestSetRoleCreatesMissingLocalRecord(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleGuest, true))
	users := newFakeUserStore()
	sync := newTestSync(provider, users)

	_, err := sync.SetRole(context.Background(), "u1", types.RoleAdmin, nil)
	require.NoError(t, err)

	local, err := users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, local.Role)
}

func TestSetRoleSurfacesLocalFailureAfterProviderWrite(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleGuest, true))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleGuest, Approved: true})
	users.setErr = errors.New("write timeout")
	sync := newTestSync(provider, users)

	_, err := sync.SetRole(context.Background(), "u1", types.RoleAdmin, nil)

	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "local", persistErr.Side)

	// Provider write landed first; the sides are now divergent until the next
	// SyncUser repairs them.
	acct, _ := provider.GetUser(context.Background(), "u1")
	assert.Equal(t, types.RoleAdmin, acct.Metadata.Role)
}

func TestSyncUserRepairsAfterPartialSetRole(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleGuest, true))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleGuest, Approved: true})
	users.setErr = errors.New("write timeout")
	sync := newTestSync(provider, users)

	_, err := sync.SetRole(context.Background(), "u1", types.RoleAdmin, nil)
	require.Error(t, err)

	users.setErr = nil
	result, err := sync.SyncUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, result.WasConsistent)

	local, _ := users.GetByID(context.Background(), "u1")
	assert.Equal(t, types.RoleAdmin, local.Role)
}

func TestApproveUserKeepsRole(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleStaff, false))
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleStaff, Approved: false})
	sync := newTestSync(provider, users)

	result, err := sync.ApproveUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, types.RoleStaff, result.Role)
	assert.True(t, result.Approved)

	local, _ := users.GetByID(context.Background(), "u1")
	assert.True(t, local.Approved)
	assert.Equal(t, types.RoleStaff, local.Role)
}

func TestDiagnose(t *testing.T) {
	cases := []struct {
		name     string
		snapshot types.IdentitySnapshot
		want     []string
	}{
		{
			name: "consistent",
			snapshot: types.IdentitySnapshot{
				ProviderRole: types.RoleStaff, ProviderApproved: true,
				InDatabase: true, DBRole: types.RoleStaff, DBApproved: true,
			},
			want: nil,
		},
		{
			name:     "missing everywhere",
			snapshot: types.IdentitySnapshot{},
			want:     []string{"provider has no role set", "no local user record"},
		},
		{
			name: "role mismatch",
			snapshot: types.IdentitySnapshot{
				ProviderRole: types.RoleAdmin, ProviderApproved: true,
				InDatabase: true, DBRole: types.RoleStaff, DBApproved: true,
			},
			want: []string{`role mismatch: provider "admin", database "staff"`},
		},
		{
			name: "awaiting approval",
			snapshot: types.IdentitySnapshot{
				ProviderRole: types.RoleStaff, ProviderApproved: false,
				InDatabase: true, DBRole: types.RoleStaff, DBApproved: false,
			},
			want: []string{"user is awaiting approval"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Diagnose(tc.snapshot))
		})
	}
}

func TestLookupByEmail(t *testing.T) {
	acct := providerAccount("u1", types.RoleStaff, true)
	other := providerAccount("u2", types.RoleGuest, true)
	other.Email = acct.Email
	provider := newFakeProvider(acct, other)
	users := newFakeUserStore(types.User{ID: "u1", Role: types.RoleStaff, Approved: true})
	sync := newTestSync(provider, users)

	snapshots, err := sync.LookupByEmail(context.Background(), acct.Email)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)

	byID := map[string]types.IdentitySnapshot{}
	for _, s := range snapshots {
		byID[s.UserID] = s
	}
	assert.True(t, byID["u1"].InDatabase)
	assert.Empty(t, byID["u1"].Issues)
	assert.False(t, byID["u2"].InDatabase)
	assert.Contains(t, byID["u2"].Issues, "no local user record")
}

func TestLoadSnapshotMissingLocal(t *testing.T) {
	provider := newFakeProvider(providerAccount("u1", types.RoleStaff, true))
	sync := newTestSync(provider, newFakeUserStore())

	snapshot, err := sync.LoadSnapshot(context.Background(), "u1")
	require.NoError(t, err)
	assert.False(t, snapshot.InDatabase)
	assert.Contains(t, snapshot.Issues, "no local user record")
}
