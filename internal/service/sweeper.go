package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper is the background policy that releases slots held by bookings never
// confirmed, or never verified, within the grace window.
type Sweeper struct {
	bookings *BookingService
	interval time.Duration
	grace    time.Duration
	logger   *zap.Logger
}

// NewSweeper builds the sweeper.
func NewSweeper(bookings *BookingService, interval, grace time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 15 * time.Minute
	}
	return &Sweeper{bookings: bookings, interval: interval, grace: grace, logger: logger}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			released, err := s.bookings.ExpireStale(ctx, s.grace)
			if err != nil {
				s.logger.Warn("grace-window sweep failed", zap.Error(err))
				continue
			}
			if released > 0 {
				s.logger.Info("grace-window sweep released slots", zap.Int("count", released))
			}
		}
	}
}
