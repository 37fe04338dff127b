package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/rocketshoes-cart/internal/config"
	"github.com/fjod/rocketshoes-cart/internal/inventory"
	"github.com/fjod/rocketshoes-cart/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// fakeapi serves the product catalog and stock levels the cart service reads, for
// local development without the real store backend.
func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{Service: "fakeapi", Level: cfg.LogLevel})

	memStore := inventory.NewMemoryStore()
	if err := inventory.Seed(memStore); err != nil {
		log.WithError(err).Fatal("failed to seed catalog")
	}
	log.Info("seeded demo catalog")

	handler := inventory.NewHandler(memStore, log)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(handler.Routes(), "fakeapi"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("fake store api listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()

	log.Info("shutting down fake store api...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
}
