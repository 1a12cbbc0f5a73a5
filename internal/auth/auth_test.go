package auth

import (
	"testing"

	"github.com/havenlab/apiserver/types"
	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	cases := []struct {
		name      string
		principal Principal
		cap       Capability
		want      bool
	}{
		{
			name:      "unauthenticated",
			principal: Principal{},
			cap:       CapManageBookings,
			want:      false,
		},
		{
			name:      "admin holds user management",
			principal: Principal{UserID: "u1", Role: types.RoleAdmin, Approved: true},
			cap:       CapManageUsers,
			want:      true,
		},
		{
			name:      "unapproved admin denied",
			principal: Principal{UserID: "u1", Role: types.RoleAdmin, Approved: false},
			cap:       CapManageUsers,
			want:      false,
		},
		{
			name:      "staff records payments",
			principal: Principal{UserID: "u1", Role: types.RoleStaff, Approved: true},
			cap:       CapRecordPayments,
			want:      true,
		},
		{
			name:      "staff cannot manage users",
			principal: Principal{UserID: "u1", Role: types.RoleStaff, Approved: true},
			cap:       CapManageUsers,
			want:      false,
		},
		{
			name:      "staff cannot touch the lab",
			principal: Principal{UserID: "u1", Role: types.RoleStaff, Approved: true},
			cap:       CapManageLab,
			want:      false,
		},
		{
			name:      "laboratory manages lab",
			principal: Principal{UserID: "u1", Role: types.RoleLab, Approved: true},
			cap:       CapManageLab,
			want:      true,
		},
		{
			name:      "laboratory cannot record payments",
			principal: Principal{UserID: "u1", Role: types.RoleLab, Approved: true},
			cap:       CapRecordPayments,
			want:      false,
		},
		{
			name:      "guest holds nothing",
			principal: Principal{UserID: "u1", Role: types.RoleGuest, Approved: true},
			cap:       CapViewReports,
			want:      false,
		},
		{
			name:      "unknown role holds nothing",
			principal: Principal{UserID: "u1", Role: "superuser", Approved: true},
			cap:       CapManageUsers,
			want:      false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Authorize(tc.principal, tc.cap))
		})
	}
}
