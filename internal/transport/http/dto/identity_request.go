package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/civitas-platform/identity-service/internal/domain"
)

// Shared validator instance; tags carry the structural rules, Validate()
// translates failures into domain errors.
var validate = validator.New(validator.WithRequiredStructEnabled())

func runValidate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.ErrInvalidField("body", "validation failed")
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	if fe.Tag() == "required" {
		return domain.ErrMissingField(field)
	}
	return domain.ErrInvalidField(field, fe.Tag())
}

// -------- Registration --------

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Role      string `json:"role,omitempty"`
}

func (r *RegisterRequest) Validate() error {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if err := runValidate(r); err != nil {
		return err
	}
	if r.Role != "" && !domain.IsValidRole(r.Role) {
		return domain.ErrInvalidField("role", "unknown role")
	}
	return nil
}

// -------- Login --------

// LoginRequest is the JSON body form of credentials. The handler also
// accepts Basic auth; exactly one of the two must be present.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) Empty() bool {
	return r.Email == "" && r.Password == ""
}

func (r *LoginRequest) Validate() error {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Email == "" {
		return domain.ErrMissingField("email")
	}
	if r.Password == "" {
		return domain.ErrMissingField("password")
	}
	return nil
}

// -------- Password reset --------

// Step A: request a reset link.
type PasswordForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (r *PasswordForgotRequest) Validate() error {
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	return runValidate(r)
}

// Step B: redeem the token.
type PasswordResetRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (r *PasswordResetRequest) Validate() error {
	return runValidate(r)
}

// -------- Password change (authenticated) --------

type PasswordChangeRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

func (r *PasswordChangeRequest) Validate() error {
	return runValidate(r)
}
