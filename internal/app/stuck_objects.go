package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/bucketscan/internal/adapter/observability"
	"github.com/fairyhunter13/bucketscan/internal/domain"
)

// StuckObjectSweeper periodically fails object rows that sat in processing
// longer than maxProcessingAge. Workers that die mid-object leave such rows
// behind; without the sweeper their jobs would never reach a terminal state
// once the queue redrives the message to the DLQ.
type StuckObjectSweeper struct {
	objects          domain.ObjectRepository
	maxProcessingAge time.Duration
	interval         time.Duration
}

// NewStuckObjectSweeper builds a sweeper; zero durations fall back to defaults.
func NewStuckObjectSweeper(objects domain.ObjectRepository, maxProcessingAge, interval time.Duration) *StuckObjectSweeper {
	if objects == nil {
		return nil
	}
	if maxProcessingAge <= 0 {
		maxProcessingAge = 3 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &StuckObjectSweeper{
		objects:          objects,
		maxProcessingAge: maxProcessingAge,
		interval:         interval,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *StuckObjectSweeper) Run(ctx context.Context) {
	if s == nil || s.objects == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck object sweeper stopping")
			return
		case <-ticker.C:
			s.sweepOnce(ctx)
		}
	}
}

func (s *StuckObjectSweeper) sweepOnce(ctx context.Context) {
	tracer := otel.Tracer("bucketscan.sweeper")
	ctx, span := tracer.Start(ctx, "StuckObjectSweeper.sweepOnce")
	defer span.End()
	span.SetAttributes(attribute.Float64("objects.max_processing_age_seconds", s.maxProcessingAge.Seconds()))

	n, err := s.objects.MarkStuckProcessingFailed(ctx, s.maxProcessingAge)
	if err != nil {
		span.RecordError(err)
		slog.Error("stuck object sweep failed", slog.Any("error", err))
		return
	}
	span.SetAttributes(attribute.Int64("objects.marked_failed", n))
	if n > 0 {
		observability.ReapStuckObjects(n)
		slog.Warn("stuck objects marked failed",
			slog.Int64("count", n),
			slog.Duration("max_processing_age", s.maxProcessingAge))
	}
}
