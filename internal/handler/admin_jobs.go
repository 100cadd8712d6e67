package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/service/membership"
	"github.com/fitops/gym-entitlement/internal/service/refill"
)

// AdminJobsHandler exposes the batch jobs as on-demand admin endpoints.
// Both jobs are idempotent, so triggering one that cron already ran is
// harmless.
type AdminJobsHandler struct {
	refill      *refill.Service
	memberships *membership.Service
	clk         clock.Clock
}

// NewAdminJobsHandler constructs an AdminJobsHandler.
func NewAdminJobsHandler(r *refill.Service, m *membership.Service, clk clock.Clock) *AdminJobsHandler {
	return &AdminJobsHandler{refill: r, memberships: m, clk: clk}
}

// Refill handles POST /v1/admin/jobs/refill.
func (h *AdminJobsHandler) Refill(c echo.Context) error {
	res, err := h.refill.Run(c.Request().Context(), h.clk.Now())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"processed": res.Processed,
		"skipped":   res.Skipped,
		"failed":    res.Failed,
	})
}

// Sweep handles POST /v1/admin/jobs/sweep.
func (h *AdminJobsHandler) Sweep(c echo.Context) error {
	res, err := h.memberships.Sweep(c.Request().Context(), h.clk.Now())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"expired": res.Expired,
		"failed":  res.Failed,
	})
}
