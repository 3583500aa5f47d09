package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"mess/internal/amqp"
	"mess/internal/backend"
	"mess/internal/cli"
	"mess/internal/log"
	"mess/internal/settlement"
	gsheet "mess/internal/sheets/google"
	"mess/internal/window"
	"mess/internal/worker"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)

	if err := cfg.ValidateReports(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.DataBackend == "memory" {
		logger.Error("Report worker needs a shared backend", log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer res.Close()

	model, err := settlement.ParseContributionModel(cfg.ContributionModel)
	if err != nil {
		logger.Error("Invalid contribution model", "error", err)
		os.Exit(1)
	}
	engine, err := settlement.NewEngine(model)
	if err != nil {
		logger.Error("Failed to build settlement engine", "error", err)
		os.Exit(1)
	}
	windowing, err := window.ParseWindowing(cfg.Windowing)
	if err != nil {
		logger.Error("Invalid windowing", "error", err)
		os.Exit(1)
	}
	sel, err := cli.NewSelector(cfg)
	if err != nil {
		logger.Error("Invalid household timezone", "error", err)
		os.Exit(1)
	}

	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	reports := worker.NewReportWorker(res.Persister, engine, sel, windowing, sheetsClient, cfg.GoogleReportSheetPrefix)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reports.Run(gctx, cfg.ReportInterval)
	})

	if cfg.AMQPURL != "" {
		// The worker binds its own queue so it never competes with the
		// API server for deliveries.
		queue := ""
		if cfg.AMQPQueue != "" {
			queue = cfg.AMQPQueue + ".reports"
		}
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, queue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, publishing on interval only", "error", err)
		} else {
			defer amqpClient.Close()
			g.Go(func() error {
				err := amqpClient.ConsumeChanges(gctx, reports.HandleChange)
				if err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		}
	}

	logger.Info("Starting mess-worker", "interval", cfg.ReportInterval, "prefix", cfg.GoogleReportSheetPrefix)
	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
