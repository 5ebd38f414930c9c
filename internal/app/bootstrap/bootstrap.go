// Package bootstrap wires the shared dependencies of the commands.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"meli-inventory-sync/internal/adapters/mercadolibre"
	"meli-inventory-sync/internal/app/usecases"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/history"
	"meli-inventory-sync/internal/infra/db"
	infrahttp "meli-inventory-sync/internal/infra/http"
	"meli-inventory-sync/internal/logging"
)

func MarketplaceClient(cfg config.Config, logger logging.LoggerService) *mercadolibre.Client {
	httpClient := infrahttp.NewClient(cfg.MercadoLibre.Timeout)
	tokens := mercadolibre.NewTokenSource(cfg.MercadoLibre, httpClient)
	return mercadolibre.NewClient(cfg.MercadoLibre, httpClient, tokens, logger,
		mercadolibre.WithDetailPolicy(mercadolibre.DetailPolicy(cfg.Sync.DetailRetries, cfg.Sync.DetailTimeoutDelay)),
		mercadolibre.WithUpdatePolicy(mercadolibre.UpdatePolicy(cfg.Sync.UpdateAttempts)),
	)
}

// OpenHistory opens and migrates the database and returns the store with a
// close func for the connection.
func OpenHistory(ctx context.Context, cfg config.Config) (*history.Store, func() error, error) {
	conn, err := db.Open(cfg.Database, cfg.Mysql)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	store, err := history.NewStore(conn, cfg.History)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return store, conn.Close, nil
}

// CancelOnInterrupt sets the cancel flag on the first SIGINT/SIGTERM and
// cancels ctx on the second one. The returned func stops listening.
func CancelOnInterrupt(ctx context.Context, progress *usecases.Progress, logger logging.LoggerService) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		interrupts := 0
		for {
			select {
			case <-done:
				return
			case <-sigc:
				interrupts++
				if interrupts == 1 {
					progress.RequestCancel()
					if logger != nil {
						logger.LogWarning("Interrupt received, stopping after the current item")
					}
					continue
				}
				cancel()
				return
			}
		}
	}()

	return ctx, func() {
		signal.Stop(sigc)
		close(done)
		cancel()
	}
}
