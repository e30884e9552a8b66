package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"contentops-credits/internal/infra/metrics"
	"contentops-credits/internal/usecase"
)

// RolloverWorker periodically resets lapsed billing periods via the use
// case. Deductions roll over on their own; the worker only keeps balances of
// idle users from going stale in the read API.
type RolloverWorker struct {
	interval time.Duration
	batch    int
	deductUC *usecase.DeductionUseCase
	log      *zerolog.Logger
}

func NewRolloverWorker(interval time.Duration, batch int, deductUC *usecase.DeductionUseCase, logger *zerolog.Logger) *RolloverWorker {
	l := logger.With().Str("component", "RolloverWorker").Logger()
	return &RolloverWorker{
		interval: interval,
		batch:    batch,
		deductUC: deductUC,
		log:      &l,
	}
}

func (w *RolloverWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting rollover worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping rollover worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.deductUC.SweepDueRollovers(ctx, w.batch)
			if err != nil {
				w.log.Error().Err(err).Msg("rollover sweep error")
			}
			if n > 0 {
				metrics.AddRollovers("sweep", n)
				w.log.Info().Int("count", n).Msg("balances rolled over")
			}
		}
	}
}
