package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"masjid/internal/cli"
	"masjid/internal/log"
	"masjid/internal/sheets"
	gsheet "masjid/internal/sheets/google"
	sheetsmem "masjid/internal/sheets/memory"
	"masjid/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap()
	logger.Info("Starting masjid-worker")

	res := cli.InitBackend(context.Background(), logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	var writer sheets.SummaryWriter
	if cfg.GoogleSpreadsheetID != "" {
		client, err := gsheet.NewFromEnv(context.Background())
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			return
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = sheetsmem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, summaries kept in memory")
	}

	summaries := worker.NewSummaryWorker(res.Balance, writer)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	// Catch up on months finalized while the worker was down.
	if n, err := summaries.SyncFinalizedMonths(ctx); err != nil {
		logger.Error("Startup sync failed", log.FieldError, err)
	} else {
		logger.Info("Startup sync complete", "months", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	if res.AMQP != nil {
		g.Go(func() error {
			err := res.AMQP.ConsumeMonthFinalized(gctx, summaries.HandleMonthFinalized)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP message consumption - AMQP_URL not set or broker unreachable")
	}

	g.Go(func() error {
		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := summaries.SyncFinalizedMonths(gctx); err != nil {
					logger.Error("Periodic sync failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		return
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
