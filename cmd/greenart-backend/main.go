package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arita10/greenart81-backend/internal/config"
	"github.com/arita10/greenart81-backend/internal/db"
	"github.com/arita10/greenart81-backend/internal/handler"
	"github.com/arita10/greenart81-backend/internal/order"
	"github.com/arita10/greenart81-backend/internal/payment"
	"github.com/arita10/greenart81-backend/internal/qrpay"
	"github.com/arita10/greenart81-backend/internal/redisx"
	"github.com/arita10/greenart81-backend/internal/transport"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "greenart-backend").Logger()

	log.Info().Msg("Greenart backend starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	var guard payment.ReplayGuard
	if cfg.Redis.Addr != "" {
		rdb := redisx.New(cfg.Redis.Addr)
		defer rdb.Close()
		guard = redisx.NewReplayGuard(rdb)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Callback replay guard enabled")
	} else {
		log.Warn().Msg("REDIS_ADDR not set, callback replay suppression relies on the database only")
	}

	orderRepo := order.NewRepository(pg.Pool)
	orderSvc := order.NewService(orderRepo)

	gateway := payment.NewGateway(cfg.Shopier)
	paymentRepo := payment.NewRepository(pg.Pool)
	paymentSvc := payment.NewService(paymentRepo, orderRepo, gateway, guard)

	qrRepo := qrpay.NewRepository(pg.Pool)
	qrSvc := qrpay.NewService(qrRepo)

	router := transport.NewRouter(
		handler.NewOrderHandler(orderSvc),
		handler.NewPaymentHandler(paymentSvc),
		handler.NewQRPaymentHandler(qrSvc),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
