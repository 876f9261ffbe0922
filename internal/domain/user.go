package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UserRole distinguishes dashboard capabilities.
type UserRole int

const (
	UserRoleManager    UserRole = 1
	UserRoleTechnician UserRole = 2
)

// UserRoleFromCode maps a persisted code back to a role.
func UserRoleFromCode(code int) (UserRole, error) {
	switch UserRole(code) {
	case UserRoleManager, UserRoleTechnician:
		return UserRole(code), nil
	}
	return 0, fmt.Errorf("unknown user role code %d", code)
}

// ParseUserRole accepts "manager", "technician" or a numeric code.
func ParseUserRole(raw string) (UserRole, error) {
	raw = strings.TrimSpace(raw)
	if code, err := strconv.Atoi(raw); err == nil {
		return UserRoleFromCode(code)
	}
	switch strings.ToLower(raw) {
	case "manager":
		return UserRoleManager, nil
	case "technician":
		return UserRoleTechnician, nil
	}
	return 0, fmt.Errorf("unknown user role %q", raw)
}

// Code returns the persisted integer code.
func (r UserRole) Code() int { return int(r) }

func (r UserRole) String() string {
	switch r {
	case UserRoleManager:
		return "MANAGER"
	case UserRoleTechnician:
		return "TECHNICIAN"
	}
	return "UNKNOWN"
}

// User is an authenticated manager or technician.
type User struct {
	ID        string
	Name      string
	Email     string
	Role      UserRole
	CreatedAt time.Time
}
