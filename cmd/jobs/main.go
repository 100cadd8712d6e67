// The jobs binary runs the scheduled batch work: the weekly credit
// refill and the daily membership expiration sweep.  It shares the
// service layer with the HTTP server, so triggering either job from the
// admin API and from cron is the same code path.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/fitops/gym-entitlement/internal/clock"
	"github.com/fitops/gym-entitlement/internal/config"
	"github.com/fitops/gym-entitlement/internal/database"
	"github.com/fitops/gym-entitlement/internal/queue"
	"github.com/fitops/gym-entitlement/internal/repository"
	"github.com/fitops/gym-entitlement/internal/service/membership"
	"github.com/fitops/gym-entitlement/internal/service/refill"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Error("db open failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	clk := clock.Real{}
	runner := database.SQLRunner{DB: db}
	membershipRepo := repository.NewMembershipRepo(db)
	ledgerRepo := repository.NewLedgerRepo(db)
	refillRepo := repository.NewRefillRepo(db)
	installmentRepo := repository.NewInstallmentRepo(db)

	refillSvc := refill.New(runner, membershipRepo, ledgerRepo, refillRepo, cfg.RefillEnabled, logger)
	membershipSvc := membership.New(runner, membershipRepo, ledgerRepo, installmentRepo, queue.NewPublisher(), clk, logger)

	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))

	if _, err := c.AddFunc(cfg.RefillCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := refillSvc.Run(ctx, clk.Now()); err != nil {
			logger.Error("weekly refill run failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid refill cron expression", "expr", cfg.RefillCron, "error", err)
		os.Exit(1)
	}

	if _, err := c.AddFunc(cfg.SweepCron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := membershipSvc.Sweep(ctx, clk.Now()); err != nil {
			logger.Error("expiration sweep run failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid sweep cron expression", "expr", cfg.SweepCron, "error", err)
		os.Exit(1)
	}

	logger.Info("jobs runner started", "refill_cron", cfg.RefillCron, "sweep_cron", cfg.SweepCron)
	c.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("jobs runner stopping")
	<-c.Stop().Done()
}
