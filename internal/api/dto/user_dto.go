package dto

import (
	"strings"

	"github.com/spec-kit/ticket-tracker/internal/domain"
)

// UserListQuery filters the users listing.
type UserListQuery struct {
	Role string `query:"role" validate:"required,user_role"`
}

// UserResponse is a user as the dashboards see it.
type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     int    `json:"role"`
	RoleName string `json:"role_name"`
}

// NewUserResponse maps a user.
func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role.Code(),
		RoleName: strings.ToLower(u.Role.String()),
	}
}
