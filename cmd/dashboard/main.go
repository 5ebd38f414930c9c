// HTTP API to run extractions and syncs and poll their progress.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"meli-inventory-sync/internal/app/bootstrap"
	"meli-inventory-sync/internal/app/usecases"
	"meli-inventory-sync/internal/config"
	"meli-inventory-sync/internal/httpapi"
	"meli-inventory-sync/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath, addr string
	flagSet := pflag.NewFlagSet("dashboard", pflag.ContinueOnError)
	flagSet.StringVarP(&configPath, "config", "c", "", "path to a TOML config file")
	flagSet.StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.LoadForSync(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	logger := logging.NewLogger(cfg.Logging, cfg.TelegramBot)
	console := logging.NewConsole(cfg.Logging).Slog()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeDB, err := bootstrap.OpenHistory(ctx, cfg)
	if err != nil {
		logger.LogError("history store unavailable", err)
		return err
	}
	defer closeDB()

	client := bootstrap.MarketplaceClient(cfg, logger)
	runner := usecases.NewRunner(ctx, logger)
	extract := usecases.NewExtractInventory(client, store, cfg.Sync, logger)
	syncer := usecases.NewSyncStock(client, store, cfg.Sync, logger)

	app := httpapi.NewApp(cfg, runner, extract, syncer, store, console)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		console.Info("http_listen", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		console.Info("shutdown_signal", "signal", s.String())
	case err := <-errc:
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		console.Error("http_shutdown_error", "error", err)
	}

	if runner.Cancel() {
		console.Info("shutdown_cancel_run")
	}
	waited := make(chan struct{})
	go func() {
		runner.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-shutdownCtx.Done():
		console.Warn("shutdown_run_timeout")
		cancel()
		runner.Wait()
	}
	console.Info("service_stopped")
	return nil
}
