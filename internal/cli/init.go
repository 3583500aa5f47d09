// Package cli provides common process bootstrap shared by cmd/mess,
// cmd/mess-worker and cmd/mess-backup.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mess/internal/backend"
	"mess/internal/config"
	"mess/internal/ledger"
	"mess/internal/log"
	"mess/internal/services"
	"mess/internal/settlement"
	"mess/internal/window"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_FORMAT and LOG_LEVEL and
// makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads the environment, sets up logging and
// validates the configuration. It exits the process on validation
// failure.
func LoadAndValidateConfig(component string) (*config.Config, *log.Logger) {
	LoadEnvFile()
	cfg := config.Load()
	logger := SetupLogger(cfg, component)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// InitBackend creates the configured persistence backend and loads the
// ledger from it, seeding on first run. The caller owns the returned
// result and must Close it.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) (*backend.BackendResult, *ledger.Store, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}
	store, err := backend.LoadLedger(ctx, res.Persister)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("load ledger: %w", err)
	}
	logger.Info("Ledger loaded", log.FieldBackend, bcfg.Type.String(), log.FieldRevision, store.Revision())
	return res, store, nil
}

// NewSelector binds the household timezone and deadline hour.
func NewSelector(cfg *config.Config) (*window.Selector, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return window.NewSelector(loc, window.WithDeadlineHour(cfg.SubmissionDeadlineHour)), nil
}

// NewService assembles the ledger service from configuration. Extra
// options, such as a publisher, are applied after the configured ones.
func NewService(cfg *config.Config, store *ledger.Store, saver services.Saver, opts ...services.Option) (*services.LedgerService, error) {
	model, err := settlement.ParseContributionModel(cfg.ContributionModel)
	if err != nil {
		return nil, err
	}
	engine, err := settlement.NewEngine(model)
	if err != nil {
		return nil, err
	}
	windowing, err := window.ParseWindowing(cfg.Windowing)
	if err != nil {
		return nil, err
	}
	sel, err := NewSelector(cfg)
	if err != nil {
		return nil, err
	}

	all := []services.Option{services.WithWindowing(windowing)}
	if saver != nil {
		all = append(all, services.WithSaver(saver))
	}
	all = append(all, opts...)
	return services.NewLedgerService(store, engine, sel, all...), nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}
