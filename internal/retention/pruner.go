package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Target is an aggregate whose idle records can be deleted.
type Target interface {
	Name() string
	PruneIdle(ctx context.Context, cutoff int64) (int, error)
}

// PruneFunc is told how many records a run removed from an aggregate.
type PruneFunc func(aggregate string, removed int)

// Pruner deletes aggregate records that have been idle longer than the
// retention, on a cron schedule.
type Pruner struct {
	targets   []Target
	retention time.Duration
	onPrune   PruneFunc
	now       func() time.Time
	logger    *zap.Logger
	cron      *cron.Cron
}

// NewPruner creates a pruner over targets. onPrune may be nil.
func NewPruner(retention time.Duration, onPrune PruneFunc, logger *zap.Logger, targets ...Target) *Pruner {
	return &Pruner{
		targets:   targets,
		retention: retention,
		onPrune:   onPrune,
		now:       time.Now,
		logger:    logger,
	}
}

// RunOnce prunes every target once. A failing target does not stop the others.
func (p *Pruner) RunOnce(ctx context.Context) error {
	cutoff := p.now().Add(-p.retention).UnixMilli()

	var firstErr error

	for _, target := range p.targets {
		removed, err := target.PruneIdle(ctx, cutoff)
		if removed > 0 && p.onPrune != nil {
			p.onPrune(target.Name(), removed)
		}

		if err != nil {
			p.logger.Error("failed to prune idle records",
				zap.String("aggregate", target.Name()),
				zap.Int("removed", removed),
				zap.Error(err),
			)

			if firstErr == nil {
				firstErr = fmt.Errorf("prune %s: %w", target.Name(), err)
			}

			continue
		}

		p.logger.Info("pruned idle records",
			zap.String("aggregate", target.Name()),
			zap.Int("removed", removed),
			zap.Duration("retention", p.retention),
		)
	}

	return firstErr
}

// Start schedules RunOnce on schedule, a standard cron expression or
// descriptor such as "@hourly".
func (p *Pruner) Start(schedule string) error {
	c := cron.New()

	if _, err := c.AddFunc(schedule, func() {
		_ = p.RunOnce(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	c.Start()
	p.cron = c

	p.logger.Info("retention pruning scheduled",
		zap.String("schedule", schedule),
		zap.Duration("retention", p.retention),
	)

	return nil
}

// Shutdown stops the schedule and waits for a running prune to finish.
func (p *Pruner) Shutdown() error {
	if p.cron == nil {
		return nil
	}

	<-p.cron.Stop().Done()

	return nil
}
