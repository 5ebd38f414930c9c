package usecases

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"meli-inventory-sync/internal/config"
)

// Pacer blocks until the next marketplace call may go out.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer allows bursts of ThrottleEvery calls and refills them over
// ThrottlePause. It returns nil when throttling is disabled.
func NewPacer(cfg config.SyncConfig) Pacer {
	if cfg.ThrottleEvery <= 0 || cfg.ThrottlePause <= 0 {
		return nil
	}
	every := cfg.ThrottlePause / time.Duration(cfg.ThrottleEvery)
	return rate.NewLimiter(rate.Every(every), cfg.ThrottleEvery)
}

func pace(ctx context.Context, pacer Pacer) error {
	if pacer == nil {
		return nil
	}
	return pacer.Wait(ctx)
}
