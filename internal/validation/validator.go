// Package validation binds go-playground/validator as echo's request
// validator so handlers can declare constraints on DTO tags and rely on
// c.Validate.
package validation

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/apperr"
)

// Validator adapts a validator.Validate to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// New constructs the request validator.
func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks the struct tags and converts failures into the
// engine's Validation error kind so the common handler mapping applies.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return apperr.Wrap(apperr.Validation, apperr.CodeInvalidInput, err.Error(), err)
	}
	return nil
}

var _ echo.Validator = (*Validator)(nil)
