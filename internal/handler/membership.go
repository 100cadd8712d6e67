package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/middleware"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/service/membership"
)

// MembershipHandler serves membership requests and the admin lifecycle
// operations.
type MembershipHandler struct {
	svc *membership.Service
}

// NewMembershipHandler constructs a MembershipHandler.
func NewMembershipHandler(svc *membership.Service) *MembershipHandler {
	return &MembershipHandler{svc: svc}
}

type submitRequestDTO struct {
	PackageClass     string `json:"package_class" validate:"required"`
	DurationOption   string `json:"duration_option" validate:"required"`
	WithInstallments bool   `json:"with_installments"`
}

type membershipDTO struct {
	ID             uint64  `json:"id"`
	UserID         uint64  `json:"user_id"`
	PackageClass   string  `json:"package_class"`
	DurationOption string  `json:"duration_option"`
	StartDate      *string `json:"start_date"`
	EndDate        *string `json:"end_date"`
	Status         string  `json:"status"`
	IsActive       bool    `json:"is_active"`
	RejectedReason *string `json:"rejected_reason,omitempty"`
}

func toMembershipDTO(m *model.Membership) membershipDTO {
	dto := membershipDTO{
		ID:             m.ID,
		UserID:         m.UserID,
		PackageClass:   string(m.PackageClass),
		DurationOption: string(m.DurationOption),
		Status:         string(m.Status),
		IsActive:       m.IsActive,
		RejectedReason: m.RejectedReason,
	}
	if m.StartDate != nil {
		s := m.StartDate.Format("2006-01-02")
		dto.StartDate = &s
	}
	if m.EndDate != nil {
		s := m.EndDate.Format("2006-01-02")
		dto.EndDate = &s
	}
	return dto
}

// Submit handles POST /v1/memberships/requests.
func (h *MembershipHandler) Submit(c echo.Context) error {
	var req submitRequestDTO
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	id, err := h.svc.SubmitRequest(c.Request().Context(), middleware.UserID(c),
		model.PackageClass(req.PackageClass), model.DurationOption(req.DurationOption), req.WithInstallments)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id, "status": string(model.MembershipPending)})
}

// ListMine handles GET /v1/memberships.
func (h *MembershipHandler) ListMine(c echo.Context) error {
	list, err := h.svc.ListEffective(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]membershipDTO, 0, len(list))
	for i := range list {
		out = append(out, toMembershipDTO(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"memberships": out})
}

// Approve handles POST /v1/admin/requests/:id/approve.
func (h *MembershipHandler) Approve(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	m, err := h.svc.Approve(c.Request().Context(), id, middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toMembershipDTO(m))
}

type rejectDTO struct {
	Reason string `json:"reason" validate:"required"`
}

// Reject handles POST /v1/admin/requests/:id/reject.
func (h *MembershipHandler) Reject(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	var req rejectDTO
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := h.svc.Reject(c.Request().Context(), id, req.Reason); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": string(model.MembershipRejected)})
}

// Deactivate handles POST /v1/admin/requests/:id/deactivate.
func (h *MembershipHandler) Deactivate(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	outcome, err := h.svc.Deactivate(c.Request().Context(), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":               id,
		"cascaded":         outcome.Deactivated,
		"cascade_failures": outcome.Failed,
	})
}

type creditDTO struct {
	UserID       uint64  `json:"user_id" validate:"required"`
	ServiceClass string  `json:"service_class" validate:"required"`
	Amount       int     `json:"amount" validate:"required"`
	ExpiresAt    *string `json:"expires_at"`
}

// Credit handles POST /v1/admin/credits.
func (h *MembershipHandler) Credit(c echo.Context) error {
	var req creditDTO
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	var expires *time.Time
	if req.ExpiresAt != nil {
		t, err := time.Parse(time.RFC3339, *req.ExpiresAt)
		if err != nil {
			return respondErr(c, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "expires_at must be RFC 3339"))
		}
		expires = &t
	}
	entryID, err := h.svc.CreditDeposit(c.Request().Context(), req.UserID,
		model.ServiceClass(req.ServiceClass), req.Amount, expires, middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"entry_id": entryID})
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "invalid id")
	}
	return id, nil
}
