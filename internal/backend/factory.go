package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mess/internal/core"
	"mess/internal/ledger"
	"mess/internal/storage"
)

var errNilConfig = errors.New("app config is nil")

// Validate validates the backend configuration
func (c Config) Validate() error {
	switch c.Type {
	case MemoryBackend:
	case FileBackend:
		if c.DataFile == "" {
			return fmt.Errorf("data file path is required for file backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	default:
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	return nil
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(_ context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return &BackendResult{Persister: repo, Cleanup: repo.Close}, nil

	case FileBackend:
		store, err := storage.NewFileStore(config.DataFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file backend: %w", err)
		}
		f.logger.Info("Initialized file backend", "path", config.DataFile)
		return &BackendResult{Persister: store}, nil

	default:
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Persister: storage.NewMemoryStore()}, nil
	}
}

// LoadLedger builds the store from the persisted snapshot, or from the
// seed data when nothing has been saved yet.
func LoadLedger(ctx context.Context, p storage.Persister) (*ledger.Store, error) {
	snap, found, err := p.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if !found {
		slog.InfoContext(ctx, "No saved ledger, starting from seed data", "members", len(core.DefaultMembers()))
		return ledger.NewSeeded(), nil
	}
	slog.InfoContext(ctx, "Ledger loaded",
		"members", len(snap.Members),
		"meals", len(snap.Meals),
		"expenses", len(snap.Expenses))
	return ledger.New(snap), nil
}
