package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/api/dto"
	"github.com/spec-kit/ticket-tracker/internal/auth"
	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// UserDirectory lists users by role.
type UserDirectory interface {
	ListByRole(ctx context.Context, role domain.UserRole) ([]domain.User, error)
}

// UsersHandler exposes the user listing and the caller's profile.
type UsersHandler struct {
	users     UserDirectory
	validator *dto.Validator
}

// NewUsersHandler constructs handler.
func NewUsersHandler(users UserDirectory, validator *dto.Validator) *UsersHandler {
	return &UsersHandler{users: users, validator: validator}
}

// ListUsers handles GET /api/users?role=technician.
func (h *UsersHandler) ListUsers(c *fiber.Ctx) error {
	var query dto.UserListQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := h.validator.Validate(query); err != nil {
		return err
	}
	role, _ := domain.ParseUserRole(query.Role)
	users, err := h.users.ListByRole(c.UserContext(), role)
	if err != nil {
		return apperrors.NewStorageError("list users", err, map[string]any{"role": role.Code()})
	}
	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}
	return c.JSON(fiber.Map{"success": true, "users": items})
}

// Profile handles GET /api/profile.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	return c.JSON(fiber.Map{"success": true, "user": dto.NewUserResponse(*principal.User)})
}
