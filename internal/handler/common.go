// Package handler exposes the engine over HTTP.  Handlers bind and
// validate the request, delegate to a service, and translate the error
// taxonomy into status codes.  No business decision is made here.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/apperr"
)

// respondErr maps the error taxonomy onto HTTP statuses.  Unknown errors
// become opaque 500s; their detail stays in the server log, not the body.
func respondErr(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	msg := "internal error"
	switch apperr.KindOf(err) {
	case apperr.Validation:
		status = http.StatusBadRequest
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.Conflict:
		status = http.StatusConflict
	case apperr.Policy:
		status = http.StatusUnprocessableEntity
	default:
		c.Logger().Errorf("unhandled error: %v", err)
		return c.JSON(status, echo.Map{"error": code, "message": msg})
	}
	return c.JSON(status, echo.Map{"error": string(apperr.CodeOf(err)), "message": err.Error()})
}

// bind decodes and validates a request DTO in one step.
func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Wrap(apperr.Validation, apperr.CodeInvalidInput, "malformed request body", err)
	}
	return c.Validate(v)
}
