package types

import "time"

// Roles assignable through the admin surface. The lab domain additionally
// recognizes laboratory and patient principals, but those are never set via
// the role-management endpoints.
const (
	RoleGuest   = "guest"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
	RoleLab     = "laboratory"
	RolePatient = "patient"
)

// AssignableRole reports whether role may be set through role management.
func AssignableRole(role string) bool {
	switch role {
	case RoleGuest, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is the local persisted copy of an identity-provider account.
type User struct {
	// ID mirrors the identity provider's user id and is immutable.
	ID string `bson:"_id" json:"id"`

	// Role is the user's authorization level ("guest", "staff", "admin").
	Role string `bson:"role" json:"role"`

	// Approved gates staff/admin access. Guests are auto-approved by policy.
	Approved bool `bson:"approved" json:"approved"`

	// IsActive is the soft-delete / ban flag. Users are never hard-deleted.
	IsActive bool `bson:"is_active" json:"isActive"`

	// Denormalized provider profile fields.
	Name  string `bson:"name" json:"name"`
	Email string `bson:"email" json:"email"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`

	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deletedAt,omitempty"`
}

// StaffProfile holds the minimal employment record created when a user is
// first given the staff role.
type StaffProfile struct {
	UserID     string    `bson:"_id" json:"userId"`
	EmployeeID string    `bson:"employee_id" json:"employeeId"`
	Position   string    `bson:"position,omitempty" json:"position,omitempty"`
	CreatedAt  time.Time `bson:"created_at" json:"createdAt"`
}

// IdentitySnapshot is a loaded view of the two sides of the identity mirror,
// consumed by the diagnosis helper.
type IdentitySnapshot struct {
	UserID           string   `json:"userId"`
	ProviderRole     string   `json:"providerRole"`
	ProviderApproved bool     `json:"providerApproved"`
	DBRole           string   `json:"dbRole"`
	DBApproved       bool     `json:"dbApproved"`
	InDatabase       bool     `json:"inDatabase"`
	Issues           []string `json:"issues,omitempty"`
}
