package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"contentops-credits/internal/config"
	"contentops-credits/internal/infra/api"
	pg "contentops-credits/internal/infra/db/postgres"
	"contentops-credits/internal/infra/logging"
	"contentops-credits/internal/infra/metrics"
	red "contentops-credits/internal/infra/redis"
	"contentops-credits/internal/infra/sched"
	"contentops-credits/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (header auth, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPlanRepo(pool), redisClient, cfg.Redis.PlanTTL)
	subRepo := pg.NewSubscriptionRepo(pool)
	balanceRepo := pg.NewBalanceRepo(pool)
	eventRepo := pg.NewUsageEventRepo(pool)

	// ---- Use cases ----
	deductUC := usecase.NewDeductionUseCase(balanceRepo, subRepo, planRepo, eventRepo, tm, logger)
	balanceUC := usecase.NewBalanceUseCase(balanceRepo, subRepo, planRepo, eventRepo, logger)
	syncUC := usecase.NewSyncUseCase(subRepo, planRepo, tm, logger)
	planUC := usecase.NewPlanUseCase(planRepo, logger)

	// ---- HTTP ----
	srv := api.NewServer(balanceUC, deductUC, syncUC, planUC, rateLimiter, cfg.Server, cfg.Limits, cfg.Runtime.Dev, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Rollover sweep worker ----
	worker := sched.NewRolloverWorker(cfg.Sweep.Interval, cfg.Sweep.BatchSize, deductUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
