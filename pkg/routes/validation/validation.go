// Package validation binds and validates request payloads for the route handlers.
package validation

import (
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct's `validate` tags.
func Validate[T any](v T) (T, error) {
	if err := validate.Struct(v); err != nil {
		return v, models.NewValidationError("%s", err.Error())
	}
	return v, nil
}

// BindRequest binds the request into a T and validates it. Both failures are validation
// errors.
func BindRequest[T any](c echo.Context) (T, error) {
	var v T

	if err := c.Bind(&v); err != nil {
		return v, models.NewValidationError("invalid request body: %s", err.Error())
	}

	return Validate(v)
}
