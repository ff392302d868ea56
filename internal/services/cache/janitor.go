package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/finsignal/finsignal/internal/interfaces"
)

// Janitor periodically sweeps expired entries out of the enrichment cache.
// Reads already refuse expired entries; the sweep only reclaims disk.
type Janitor struct {
	cache    interfaces.CacheStorage
	schedule string
	cron     *cron.Cron
	logger   arbor.ILogger
}

// NewJanitor creates a janitor on the given cron schedule, e.g. "@every 1h".
func NewJanitor(cache interfaces.CacheStorage, schedule string, logger arbor.ILogger) *Janitor {
	return &Janitor{
		cache:    cache,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger,
	}
}

// Start registers the sweep and begins the schedule.
func (j *Janitor) Start() error {
	if j.schedule == "" {
		j.logger.Debug().Msg("Cache janitor disabled, no schedule configured")
		return nil
	}

	_, err := j.cron.AddFunc(j.schedule, j.sweep)
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Msg("Cache janitor started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Debug().Msg("Cache janitor stopped")
}

func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	removed, err := j.cache.DeleteExpired(ctx, time.Now())
	if err != nil {
		j.logger.Warn().Err(err).Msg("Cache sweep failed")
		return
	}
	if removed > 0 {
		j.logger.Info().Int("removed", removed).Msg("Cache sweep reclaimed expired entries")
	}
}
