package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"comandas/internal/broker"
	"comandas/internal/config"
	"comandas/internal/database"
	"comandas/internal/handler"
	"comandas/internal/notify"
	"comandas/internal/service"
	"comandas/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if err := run(cfg); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(ctx, db); err != nil {
		return err
	}

	var (
		sinks  []notify.Sink
		checks []handler.Checker
	)
	if cfg.AMQPURL != "" {
		sink, err := broker.Dial(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return err
		}
		defer sink.Close()
		sinks = append(sinks, sink)
		checks = append(checks, sink)
	}
	hub := notify.NewHub(32, sinks...)
	// runs before sink.Close so queued events still reach the broker
	defer hub.Close()

	// Services
	totalsSvc := service.NewTotalsService(db)
	publisher := worker.NewTotalsPublisher(totalsSvc, cfg.TotalsInterval)
	orderSvc := service.NewOrderService(db, hub)
	statusSvc := service.NewStatusService(db, hub)
	settlementSvc := service.NewSettlementService(db, hub, publisher)

	router := handler.NewRouter(handler.Deps{
		Orders:      orderSvc,
		Statuses:    statusSvc,
		Settlements: settlementSvc,
		Totals:      totalsSvc,
		Events:      hub,
		TotalsFeed:  publisher,
		DB:          db,

		HealthChecks: checks,

		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", cfg.RunAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		publisher.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShut()
		if err := srv.Shutdown(ctxShut); err != nil {
			slog.Error("server shutdown failed", "error", err)
			return err
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}
