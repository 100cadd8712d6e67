// Package router registers the HTTP routes and binds the middleware
// chain: public browse endpoints are cached, member endpoints carry JWT
// identity plus rate limiting, admin endpoints additionally require the
// ADMIN role.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/fitops/gym-entitlement/internal/config"
	"github.com/fitops/gym-entitlement/internal/handler"
	"github.com/fitops/gym-entitlement/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Membership  *handler.MembershipHandler
	Booking     *handler.BookingHandler
	Entitlement *handler.EntitlementHandler
	Installment *handler.InstallmentHandler
	Jobs        *handler.AdminJobsHandler
}

// Register mounts all routes on the Echo instance.
func Register(e *echo.Echo, h Handlers, jwtSecret string, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Public browse.
	e.GET("/v1/slots", h.Booking.ListSlots, cache)

	// Member endpoints.
	m := e.Group("/v1")
	m.Use(middleware.JWTAuth(jwtSecret))
	m.Use(middleware.RequireRole(middleware.RoleMember, middleware.RoleAdmin))
	m.Use(limit)
	m.POST("/memberships/requests", h.Membership.Submit)
	m.GET("/memberships", h.Membership.ListMine)
	m.GET("/entitlement", h.Entitlement.Status)
	m.POST("/bookings", h.Booking.Book)
	m.POST("/bookings/:id/cancel", h.Booking.Cancel)
	m.GET("/bookings", h.Booking.ListMine)

	// Admin endpoints.
	a := e.Group("/v1/admin")
	a.Use(middleware.JWTAuth(jwtSecret))
	a.Use(middleware.RequireRole(middleware.RoleAdmin))
	a.POST("/requests/:id/approve", h.Membership.Approve)
	a.POST("/requests/:id/reject", h.Membership.Reject)
	a.POST("/requests/:id/deactivate", h.Membership.Deactivate)
	a.POST("/credits", h.Membership.Credit)
	a.POST("/slots", h.Booking.CreateSlot)
	a.GET("/requests/:id/installments", h.Installment.Get)
	a.PUT("/requests/:id/installments/:slot", h.Installment.SetSlot)
	a.POST("/requests/:id/installments/:slot/pay", h.Installment.MarkPaid)
	a.DELETE("/requests/:id/installments/third", h.Installment.DeleteThird)
	a.POST("/requests/:id/installments/third/restore", h.Installment.RestoreThird)
	a.POST("/jobs/refill", h.Jobs.Refill)
	a.POST("/jobs/sweep", h.Jobs.Sweep)
}
