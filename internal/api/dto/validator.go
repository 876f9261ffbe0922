package dto

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/spec-kit/ticket-tracker/internal/domain"
	apperrors "github.com/spec-kit/ticket-tracker/pkg/util/errorutil"
)

// Validator checks request DTOs against their validate tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the ticket enum rules and reports fields by their
// json/query/form name.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "query", "form"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	rules := map[string]validator.Func{
		"ticket_status": func(fl validator.FieldLevel) bool {
			_, err := domain.ParseTicketStatus(fl.Field().String())
			return err == nil
		},
		"ticket_priority": func(fl validator.FieldLevel) bool {
			_, err := domain.ParseTicketPriority(fl.Field().String())
			return err == nil
		},
		"user_role": func(fl validator.FieldLevel) bool {
			_, err := domain.ParseUserRole(fl.Field().String())
			return err == nil
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic("register validation " + tag + ": " + err.Error())
		}
	}
	return &Validator{validate: v}
}

// Validate returns a VALIDATION_FAILED error listing each failing field and
// the rule it broke.
func (v *Validator) Validate(req any) error {
	err := v.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid request", nil)
	}
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid request", map[string]any{"fields": fields})
}
