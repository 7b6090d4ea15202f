// Package forms validates the sign-in and sign-up forms field by field and
// submits them through the session context.
package forms

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/snapreel/backend/internal/models"
)

// ErrRejected means the form was valid but the identity service refused it.
var ErrRejected = errors.New("credentials were not accepted")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		return strings.ToLower(field.Name)
	})
	return v
}

// Authenticator is the part of the session context the forms submit to.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) *models.Account
	SignUp(ctx context.Context, email, password, name string) *models.Account
}

// FieldErrors maps a form field to the message shown under it.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	msgs := make([]string, 0, len(fields))
	for _, field := range fields {
		msgs = append(msgs, e[field])
	}
	return strings.Join(msgs, "; ")
}

// SignIn is the sign-in form.
type SignIn struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// Validate returns nil when every field is acceptable.
func (f SignIn) Validate() FieldErrors {
	return check(f.normalized())
}

func (f SignIn) normalized() SignIn {
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// Submit validates the form and signs in. Invalid input never reaches the
// identity service.
func (f SignIn) Submit(ctx context.Context, auth Authenticator) (*models.Account, error) {
	f = f.normalized()
	if errs := check(f); errs != nil {
		return nil, errs
	}
	account := auth.SignIn(ctx, f.Email, f.Password)
	if account == nil {
		return nil, ErrRejected
	}
	return account, nil
}

// SignUp is the registration form.
type SignUp struct {
	Name     string `validate:"required,min=2"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// Validate returns nil when every field is acceptable.
func (f SignUp) Validate() FieldErrors {
	return check(f.normalized())
}

func (f SignUp) normalized() SignUp {
	f.Name = strings.TrimSpace(f.Name)
	f.Email = strings.TrimSpace(f.Email)
	return f
}

// Submit validates the form and creates the account.
func (f SignUp) Submit(ctx context.Context, auth Authenticator) (*models.Account, error) {
	f = f.normalized()
	if errs := check(f); errs != nil {
		return nil, errs
	}
	account := auth.SignUp(ctx, f.Email, f.Password, f.Name)
	if account == nil {
		return nil, ErrRejected
	}
	return account, nil
}

func check(form any) FieldErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var invalid validator.ValidationErrors
	if !errors.As(err, &invalid) {
		return FieldErrors{"form": err.Error()}
	}
	errs := make(FieldErrors, len(invalid))
	for _, fe := range invalid {
		if _, seen := errs[fe.Field()]; !seen {
			errs[fe.Field()] = message(fe)
		}
	}
	return errs
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is a required field"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email"
	default:
		return fe.Field() + " is invalid"
	}
}
