package backend

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/storage"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Result contains the persister instance and optional cleanup function.
type Result struct {
	Persister storage.Persister
	Cleanup   CleanupFunc
}

// Factory creates persistence backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation.
type Config struct {
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// JSON file specific
	JSONFilePath string
}

// Type represents the kind of persistence backend.
type Type string

const (
	SQLiteBackend   Type = "sqlite"
	JSONFileBackend Type = "jsonfile"
	MemoryBackend   Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, JSONFileBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case JSONFileBackend:
		if c.JSONFilePath == "" {
			return fmt.Errorf("JSON file path is required for jsonfile backend")
		}
	case MemoryBackend:
		// Memory backend doesn't require additional configuration
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
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case JSONFileBackend:
		return f.createJSONFileBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*Result, error) {
	store, err := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite store: %w", err)
	}

	f.logger.Info("SQLite backend initialized", "db_path", config.SQLiteDBPath)

	return &Result{
		Persister: store,
		Cleanup:   store.Close,
	}, nil
}

func (f *DefaultFactory) createJSONFileBackend(config Config) (*Result, error) {
	store := storage.NewJSONStore(config.JSONFilePath)

	f.logger.Info("JSON file backend initialized", "path", config.JSONFilePath)

	return &Result{
		Persister: store,
		Cleanup:   func() error { return nil },
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*Result, error) {
	f.logger.Info("Memory backend initialized")

	return &Result{
		Persister: storage.NewMemoryStore(),
		Cleanup:   func() error { return nil },
	}, nil
}
