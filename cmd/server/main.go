package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/config"
	"github.com/fitops/gym-entitlement/internal/database"
	"github.com/fitops/gym-entitlement/internal/handler"
	"github.com/fitops/gym-entitlement/internal/queue"
	"github.com/fitops/gym-entitlement/internal/repository"
	"github.com/fitops/gym-entitlement/internal/router"
	"github.com/fitops/gym-entitlement/internal/service/booking"
	"github.com/fitops/gym-entitlement/internal/service/entitlement"
	"github.com/fitops/gym-entitlement/internal/service/installment"
	"github.com/fitops/gym-entitlement/internal/service/membership"
	"github.com/fitops/gym-entitlement/internal/service/refill"
	"github.com/fitops/gym-entitlement/internal/validation"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, cache and rate limiting disabled")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	clk := clock.Real{}
	runner := database.SQLRunner{DB: db}

	membershipRepo := repository.NewMembershipRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	refillRepo := repository.NewRefillRepo(db)
	slotRepo := repository.NewSlotRepo(db)
	bookingRepo := repository.NewBookingRepo(db)
	installmentRepo := repository.NewInstallmentRepo(db)

	publisher := queue.NewPublisher()
	go func() {
		if err := queue.StartActivityConsumer(logger); err != nil {
			logger.Error("activity consumer stopped", "error", err)
		}
	}()

	membershipSvc := membership.New(runner, membershipRepo, ledgerRepo, installmentRepo, publisher, clk, logger)
	bookingSvc := booking.New(runner, slotRepo, bookingRepo, membershipRepo, ledgerRepo, publisher, clk, logger)
	refillSvc := refill.New(runner, membershipRepo, ledgerRepo, refillRepo, cfg.RefillEnabled, logger)
	installmentSvc := installment.New(runner, installmentRepo, clk, logger)
	evaluator := entitlement.NewEvaluator(membershipRepo, ledgerRepo, clk)

	e := echo.New()
	e.Validator = validation.New()
	router.Register(e, router.Handlers{
		Membership:  handler.NewMembershipHandler(membershipSvc),
		Booking:     handler.NewBookingHandler(bookingSvc),
		Entitlement: handler.NewEntitlementHandler(evaluator),
		Installment: handler.NewInstallmentHandler(installmentSvc),
		Jobs:        handler.NewAdminJobsHandler(refillSvc, membershipSvc, clk),
	}, cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
