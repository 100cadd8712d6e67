package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/middleware"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/service/installment"
)

// InstallmentHandler serves the staged-payment plan endpoints.  Slot
// numbers are 1-based on the wire and 0-based internally.
type InstallmentHandler struct {
	svc *installment.Service
}

// NewInstallmentHandler constructs an InstallmentHandler.
func NewInstallmentHandler(svc *installment.Service) *InstallmentHandler {
	return &InstallmentHandler{svc: svc}
}

type slotPlanDTO struct {
	Amount        float64 `json:"amount"`
	DueDate       *string `json:"due_date"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Locked        bool    `json:"locked"`
	Paid          bool    `json:"paid"`
}

type planDTO struct {
	MembershipID uint64         `json:"membership_id"`
	Slots        [3]slotPlanDTO `json:"slots"`
	ThirdDeleted bool           `json:"third_deleted"`
	Total        float64        `json:"total"`
	AllPaid      bool           `json:"all_paid"`
}

func toPlanDTO(p *model.InstallmentPlan) planDTO {
	dto := planDTO{
		MembershipID: p.MembershipID,
		ThirdDeleted: p.ThirdDeleted,
		Total:        p.Total(),
		AllPaid:      p.AllPaid(),
	}
	for i, s := range p.Slots {
		dto.Slots[i] = slotPlanDTO{
			Amount:        s.Amount,
			PaymentMethod: s.PaymentMethod,
			Locked:        s.Locked,
			Paid:          s.Paid,
		}
		if s.DueDate != nil {
			d := s.DueDate.Format("2006-01-02")
			dto.Slots[i].DueDate = &d
		}
	}
	return dto
}

// Get handles GET /v1/admin/requests/:id/installments.
func (h *InstallmentHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toPlanDTO(p))
}

type setSlotDTO struct {
	Amount        float64 `json:"amount" validate:"gte=0"`
	DueDate       *string `json:"due_date"`
	PaymentMethod string  `json:"payment_method"`
}

// SetSlot handles PUT /v1/admin/requests/:id/installments/:slot.
func (h *InstallmentHandler) SetSlot(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	idx, err := slotIndex(c)
	if err != nil {
		return respondErr(c, err)
	}
	var req setSlotDTO
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	var due *time.Time
	if req.DueDate != nil {
		d, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return respondErr(c, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "due_date must be YYYY-MM-DD"))
		}
		due = &d
	}
	p, err := h.svc.SetSlot(c.Request().Context(), id, idx, req.Amount, due, req.PaymentMethod)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toPlanDTO(p))
}

// MarkPaid handles POST /v1/admin/requests/:id/installments/:slot/pay.
func (h *InstallmentHandler) MarkPaid(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	idx, err := slotIndex(c)
	if err != nil {
		return respondErr(c, err)
	}
	p, err := h.svc.MarkPaid(c.Request().Context(), id, idx)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toPlanDTO(p))
}

// DeleteThird handles DELETE /v1/admin/requests/:id/installments/third.
func (h *InstallmentHandler) DeleteThird(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.svc.DeleteThird(c.Request().Context(), id, middleware.UserID(c)); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RestoreThird handles POST /v1/admin/requests/:id/installments/third/restore.
func (h *InstallmentHandler) RestoreThird(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.svc.RestoreThird(c.Request().Context(), id); err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func slotIndex(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("slot"))
	if err != nil || n < 1 || n > 3 {
		return 0, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "slot must be 1..3")
	}
	return n - 1, nil
}
