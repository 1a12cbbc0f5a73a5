package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/havenlab/apiserver/internal/identity"
	"github.com/havenlab/apiserver/internal/services"
	"github.com/havenlab/apiserver/internal/store"
	"github.com/havenlab/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memProvider struct {
	accounts map[string]identity.Account
}

func (p *memProvider) GetUser(_ context.Context, id string) (identity.Account, error) {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.Account{}, identity.ErrUserNotFound
	}
	return acct, nil
}

func (p *memProvider) UpdateMetadata(_ context.Context, id string, md identity.Metadata) error {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	md.HasRole = true
	acct.Metadata = md
	p.accounts[id] = acct
	return nil
}

func (p *memProvider) ListUsersByEmail(_ context.Context, email string) ([]identity.Account, error) {
	var out []identity.Account
	for _, a := range p.accounts {
		if a.Email == email {
			out = append(out, a)
		}
	}
	return out, nil
}

func (p *memProvider) BanUser(_ context.Context, id string) error {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	acct.Banned = true
	p.accounts[id] = acct
	return nil
}

func (p *memProvider) UnbanUser(_ context.Context, id string) error {
	acct, ok := p.accounts[id]
	if !ok {
		return identity.ErrUserNotFound
	}
	acct.Banned = false
	p.accounts[id] = acct
	return nil
}

func (p *memProvider) DeleteUser(_ context.Context, id string) error {
	if _, ok := p.accounts[id]; !ok {
		return identity.ErrUserNotFound
	}
	delete(p.accounts, id)
	return nil
}

type memUserStore struct {
	users    map[string]types.User
	profiles map[string]types.StaffProfile
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:    make(map[string]types.User),
		profiles: make(map[string]types.StaffProfile),
	}
}

func (s *memUserStore) GetByID(_ context.Context, id string) (types.User, error) {
	u, ok := s.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) Create(_ context.Context, user types.User) (types.User, error) {
	s.users[user.ID] = user
	return user, nil
}

func (s *memUserStore) SetRoleState(_ context.Context, id, role string, approved, active bool) error {
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

func (s *memUserStore) GetStaffProfile(_ context.Context, userID string) (types.StaffProfile, error) {
	p, ok := s.profiles[userID]
	if !ok {
		return types.StaffProfile{}, store.ErrNotFound
	}
	return p, nil
}

func (s *memUserStore) CreateStaffProfile(_ context.Context, profile types.StaffProfile) error {
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *memUserStore) List(_ context.Context, offset, limit int) ([]types.User, error) {
	var out []types.User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *memUserStore) SoftDelete(_ context.Context, id string) error {
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.IsActive = false
	s.users[id] = u
	return nil
}

func newAdminTestServer(t *testing.T, provider *memProvider, users *memUserStore) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	syncService := services.NewSyncService(provider, users, nil, logger)
	userService := services.NewUserService(provider, users, logger)

	router := chi.NewRouter()
	router.Use(RequireSession(testSecret))
	router.Route("/admin", func(r chi.Router) {
		AdminRouter(r, syncService, userService)
	})
	return router
}

func TestAdminSyncEndpoint(t *testing.T) {
	provider := &memProvider{accounts: map[string]identity.Account{
		"u1": {
			ID:    "u1",
			Email: "u1@example.com",
			Metadata: identity.Metadata{
				Role:     "staff",
				Approved: true,
				HasRole:  true,
			},
		},
	}}
	users := newMemUserStore()
	srv := newAdminTestServer(t, provider, users)

	rec := postJSON(t, srv, "/admin/sync", adminToken(t), map[string]any{"targetUserId": "u1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data struct {
			UserID     string `json:"userId"`
			Role       string `json:"role"`
			Approved   bool   `json:"approved"`
			InDatabase bool   `json:"inDatabase"`
			Created    bool   `json:"created"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "u1", envelope.Data.UserID)
	assert.Equal(t, "staff", envelope.Data.Role)
	assert.True(t, envelope.Data.InDatabase)
	assert.True(t, envelope.Data.Created)

	local, err := users.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "staff", local.Role)
}

func TestAdminSyncEndpointValidation(t *testing.T) {
	srv := newAdminTestServer(t, &memProvider{accounts: map[string]identity.Account{}}, newMemUserStore())
	token := adminToken(t)

	rec := postJSON(t, srv, "/admin/sync", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, srv, "/admin/sync", token, map[string]any{"targetUserId": "ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSetRoleEndpoint(t *testing.T) {
	provider := &memProvider{accounts: map[string]identity.Account{
		"u1": {ID: "u1", Metadata: identity.Metadata{Role: "guest", Approved: true, HasRole: true}},
	}}
	users := newMemUserStore()
	users.users["u1"] = types.User{ID: "u1", Role: "guest", Approved: true, IsActive: true}
	srv := newAdminTestServer(t, provider, users)

	rec := postJSON(t, srv, "/admin/role", adminToken(t), map[string]any{
		"targetUserId": "u1",
		"role":         "staff",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var envelope struct {
		Data services.SyncResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "staff", envelope.Data.Role)
	// Staff default to unapproved until an admin approves them.
	assert.False(t, envelope.Data.Approved)
}

func TestAdminSetRoleEndpointRejectsUnknownRole(t *testing.T) {
	srv := newAdminTestServer(t, &memProvider{accounts: map[string]identity.Account{}}, newMemUserStore())

	rec := postJSON(t, srv, "/admin/role", adminToken(t), map[string]any{
		"targetUserId": "u1",
		"role":         "superuser",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDiagnoseEndpoint(t *testing.T) {
	provider := &memProvider{accounts: map[string]identity.Account{
		"u1": {ID: "u1", Metadata: identity.Metadata{Role: "admin", Approved: true, HasRole: true}},
	}}
	users := newMemUserStore()
	users.users["u1"] = types.User{ID: "u1", Role: "staff", Approved: true, IsActive: true}
	srv := newAdminTestServer(t, provider, users)

	req := httptest.NewRequest(http.MethodGet, "/admin/diagnose/u1", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data types.IdentitySnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Data.InDatabase)
	require.Len(t, envelope.Data.Issues, 1)
	assert.Contains(t, envelope.Data.Issues[0], "role mismatch")
}

func TestAdminDeactivateEndpoint(t *testing.T) {
	provider := &memProvider{accounts: map[string]identity.Account{
		"u1": {ID: "u1", Metadata: identity.Metadata{Role: "staff", Approved: true, HasRole: true}},
	}}
	users := newMemUserStore()
	users.users["u1"] = types.User{ID: "u1", Role: "staff", Approved: true, IsActive: true}
	srv := newAdminTestServer(t, provider, users)

	rec := postJSON(t, srv, "/admin/users/u1/deactivate", adminToken(t), map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.True(t, provider.accounts["u1"].Banned)
	assert.False(t, users.users["u1"].IsActive)
}

func TestAdminEndpointsDenyStaff(t *testing.T) {
	srv := newAdminTestServer(t, &memProvider{accounts: map[string]identity.Account{}}, newMemUserStore())

	staffToken := signSession(t, SessionClaims{
		Role:             "staff",
		Approved:         true,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_staff"},
	})
	rec := postJSON(t, srv, "/admin/sync", staffToken, map[string]any{"targetUserId": "u1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
