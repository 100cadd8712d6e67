package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/middleware"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/service/entitlement"
)

// EntitlementHandler serves the read-only entitlement status endpoint.
type EntitlementHandler struct {
	eval *entitlement.Evaluator
}

// NewEntitlementHandler constructs an EntitlementHandler.
func NewEntitlementHandler(eval *entitlement.Evaluator) *EntitlementHandler {
	return &EntitlementHandler{eval: eval}
}

// Status handles GET /v1/entitlement.  The service_class query parameter
// defaults to PILATES_CLASS, the only credit-denominated class.
func (h *EntitlementHandler) Status(c echo.Context) error {
	sc := model.ServiceClass(c.QueryParam("service_class"))
	if sc == "" {
		sc = model.ServicePilatesClass
	}
	if !sc.Valid() {
		return respondErr(c, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "unknown service class"))
	}
	st, err := h.eval.Evaluate(c.Request().Context(), middleware.UserID(c), sc)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, st)
}
