package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/apperr"
	"github.com/fitops/gym-entitlement/internal/middleware"
	"github.com/fitops/gym-entitlement/internal/model"
	"github.com/fitops/gym-entitlement/internal/service/booking"
)

// BookingHandler serves slot browsing, booking and cancellation.
type BookingHandler struct {
	svc *booking.Service
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(svc *booking.Service) *BookingHandler {
	return &BookingHandler{svc: svc}
}

type bookDTO struct {
	SlotID uint64 `json:"slot_id" validate:"required"`
}

type bookingDTO struct {
	ID        uint64 `json:"id"`
	SlotID    uint64 `json:"slot_id"`
	Code      string `json:"code"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func toBookingDTO(b *model.Booking) bookingDTO {
	return bookingDTO{
		ID:        b.ID,
		SlotID:    b.SlotID,
		Code:      b.Code,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

// Book handles POST /v1/bookings.
func (h *BookingHandler) Book(c echo.Context) error {
	var req bookDTO
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	b, err := h.svc.Book(c.Request().Context(), middleware.UserID(c), req.SlotID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingDTO(b))
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.svc.Cancel(c.Request().Context(), middleware.UserID(c), id); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "status": string(model.BookingCancelled)})
}

// ListMine handles GET /v1/bookings.
func (h *BookingHandler) ListMine(c echo.Context) error {
	list, err := h.svc.ListMine(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]bookingDTO, 0, len(list))
	for i := range list {
		out = append(out, toBookingDTO(&list[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

type slotDTO struct {
	ID           uint64 `json:"id"`
	ServiceClass string `json:"service_class"`
	Title        string `json:"title"`
	StartsAt     string `json:"starts_at"`
	Capacity     int    `json:"capacity"`
	BookedCount  int    `json:"booked_count"`
}

// ListSlots handles GET /v1/slots.
func (h *BookingHandler) ListSlots(c echo.Context) error {
	slots, err := h.svc.ListSlots(c.Request().Context())
	if err != nil {
		return respondErr(c, err)
	}
	out := make([]slotDTO, 0, len(slots))
	for i := range slots {
		s := &slots[i]
		out = append(out, slotDTO{
			ID:           s.ID,
			ServiceClass: string(s.ServiceClass),
			Title:        s.Title,
			StartsAt:     s.StartsAt.Format(time.RFC3339),
			Capacity:     s.Capacity,
			BookedCount:  s.BookedCount,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}

type createSlotDTO struct {
	ServiceClass string `json:"service_class" validate:"required"`
	Title        string `json:"title" validate:"required"`
	StartsAt     string `json:"starts_at" validate:"required"`
	Capacity     int    `json:"capacity" validate:"required,gt=0"`
}

// CreateSlot handles POST /v1/admin/slots.
func (h *BookingHandler) CreateSlot(c echo.Context) error {
	var req createSlotDTO
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		return respondErr(c, apperr.E(apperr.Validation, apperr.CodeInvalidInput, "starts_at must be RFC 3339"))
	}
	id, err := h.svc.CreateSlot(c.Request().Context(), model.ServiceClass(req.ServiceClass),
		req.Title, startsAt, req.Capacity)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": id})
}
