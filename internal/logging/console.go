package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"meli-inventory-sync/internal/config"
)

// Console writes structured records through log/slog.
type Console struct {
	logger *slog.Logger
}

func NewConsole(cfg config.LoggingConfig) *Console {
	return NewConsoleWriter(os.Stdout, cfg)
}

func NewConsoleWriter(w io.Writer, cfg config.LoggingConfig) *Console {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.Format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Console{logger: slog.New(handler)}
}

// Slog exposes the underlying logger for components that log key/value pairs.
func (c *Console) Slog() *slog.Logger {
	return c.logger
}

func (c *Console) Log(value string) {
	c.logger.Info(strings.TrimSpace(value))
}

func (c *Console) LogError(value string, err error) {
	if err == nil {
		c.logger.Error(strings.TrimSpace(value))
		return
	}
	c.logger.Error(strings.TrimSpace(value), "error", err.Error())
}

func (c *Console) LogWarning(value string) {
	c.logger.Warn(strings.TrimSpace(value))
}

func (c *Console) LogSuccess(value string) {
	c.logger.Info(strings.TrimSpace(value), "outcome", "success")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
