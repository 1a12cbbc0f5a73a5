// Package auth implements capability-based authorization. Handlers never
// inspect roles directly; they build a Principal from the session token and
// ask Authorize for an explicit allow/deny decision.
package auth

import "github.com/havenlab/apiserver/types"

// Capability names a guarded operation group.
type Capability string

const (
	CapManageUsers    Capability = "manage_users"
	CapManageBookings Capability = "manage_bookings"
	CapRecordPayments Capability = "record_payments"
	CapManageLab      Capability = "manage_lab"
	CapViewReports    Capability = "view_reports"
)

// Principal is the caller's identity as established by the session
// middleware. A zero Principal is unauthenticated.
type Principal struct {
	UserID   string
	Role     string
	Approved bool
}

// Authenticated reports whether a caller identity was established.
func (p Principal) Authenticated() bool { return p.UserID != "" }

var roleCapabilities = map[string][]Capability{
	types.RoleAdmin: {
		CapManageUsers,
		CapManageBookings,
		CapRecordPayments,
		CapManageLab,
		CapViewReports,
	},
	types.RoleStaff: {
		CapManageBookings,
		CapRecordPayments,
		CapViewReports,
	},
	types.RoleLab: {
		CapManageLab,
		CapViewReports,
	},
}

// Authorize decides whether the principal may exercise the capability.
// Staff and admin principals must be approved; guests and patients hold no
// administrative capabilities at all.
func Authorize(p Principal, cap Capability) bool {
	if !p.Authenticated() {
		return false
	}
	if !p.Approved {
		return false
	}
	for _, held := range roleCapabilities[p.Role] {
		if held == cap {
			return true
		}
	}
	return false
}
