package backup

import (
	"context"
	"log/slog"
	"time"

	"github.com/juju/clock"

	"spbackup/config"
	"spbackup/internal/models"
	"spbackup/pkg/utils"
)

// SiteRunner backs up a single site. *Orchestrator implements it.
type SiteRunner interface {
	Run(ctx context.Context, site config.Site) models.SiteResult
}

// Coordinator walks the configured sites one after another. A failed site
// never stops the sites after it.
type Coordinator struct {
	runner       SiteRunner
	recorder     Recorder
	logger       *slog.Logger
	runTimestamp string

	clock clock.Clock
}

func NewCoordinator(runner SiteRunner, recorder Recorder, logger *slog.Logger, runTimestamp string) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		runner:       runner,
		recorder:     recorder,
		logger:       logger,
		runTimestamp: runTimestamp,
		clock:        clock.WallClock,
	}
}

func (c *Coordinator) Run(ctx context.Context, sites []config.Site) *models.RunSummary {
	start := c.clock.Now()
	summary := &models.RunSummary{
		RunTimestamp:  c.runTimestamp,
		Sites:         make([]models.SiteResult, 0, len(sites)),
		OperationTime: utils.FormatTime(start),
	}

	for _, site := range sites {
		if ctx.Err() != nil {
			c.logger.Warn("Run cancelled, skipping remaining sites", "next", site.Name())
			break
		}

		c.logger.Info("Processing site", "site", site.Name())
		result := c.runner.Run(ctx, site)
		if result.OK() {
			c.logger.Info("Site backup finished", "site", result.Site, "archive", result.ArchivePath)
		} else {
			c.logger.Error("Site backup failed", "site", result.Site, "stage", result.FailedStage, "error", result.Error)
		}

		if c.recorder != nil {
			// An interrupted site still gets its history row.
			if err := c.recorder.Record(context.WithoutCancel(ctx), c.runTimestamp, result); err != nil {
				c.logger.Error("Failed to record site result", "site", result.Site, "error", err)
			}
		}
		summary.Add(result)
	}

	summary.Duration = c.clock.Now().Sub(start).Round(time.Millisecond).String()
	return summary
}
