package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-core/contract"
)

// Ensure *TypingReaper implements the contract.Worker interface at compile time.
var _ contract.Worker = (*TypingReaper)(nil)

// TypingSweeper expires stale typing entries and reports how many were removed.
type TypingSweeper interface {
	Sweep(ctx context.Context) int
}

// TypingReaper periodically expires typing indicators whose refresh window
// elapsed. Clients are not trusted to send stop signals; this worker bounds
// the typing set's growth regardless.
type TypingReaper struct {
	sweeper  TypingSweeper
	interval time.Duration
	log      *slog.Logger
}

func NewTypingReaper(sweeper TypingSweeper, interval time.Duration, log *slog.Logger) *TypingReaper {
	return &TypingReaper{sweeper: sweeper, interval: interval, log: log}
}

func (w *TypingReaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping typing reaper")
			return ctx.Err()
		case <-ticker.C:
			if expired := w.sweeper.Sweep(ctx); expired > 0 {
				w.log.Debug("Expired typing entries", "count", expired)
			}
		}
	}
}
