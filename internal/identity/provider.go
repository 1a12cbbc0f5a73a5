// Package identity talks to the external identity provider that owns
// authentication. The provider's public metadata mirrors the local user
// record's role and approved fields; the sync service keeps the two equal.
package identity

import (
	"context"
	"errors"
	"fmt"
)

// ErrUserNotFound is returned when the provider has no account for the id.
var ErrUserNotFound = errors.New("identity: user not found")

// ProviderError wraps a failed provider call. The provider is an external
// SaaS; calls are not retried here beyond the HTTP client's own policy.
type ProviderError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("identity: %s: status %d", e.Op, e.StatusCode)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Metadata is the provider-side mirror of the authoritative role/approval
// fields. HasRole distinguishes "no role set yet" from an explicit guest.
type Metadata struct {
	Role     string
	Approved bool
	HasRole  bool
}

// Account is the provider's view of a user.
type Account struct {
	ID       string
	Name     string
	Email    string
	Phone    string
	Banned   bool
	Metadata Metadata
}

// Provider is the remote identity service, consumed through its documented
// contract only.
type Provider interface {
	GetUser(ctx context.Context, id string) (Account, error)
	UpdateMetadata(ctx context.Context, id string, md Metadata) error
	ListUsersByEmail(ctx context.Context, email string) ([]Account, error)
	BanUser(ctx context.Context, id string) error
	UnbanUser(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
}
