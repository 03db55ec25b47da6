package backend

import (
	"context"
	"fmt"

	"finledger/internal/log"
	"finledger/internal/storage"
	"finledger/internal/storage/memory"
	"finledger/internal/storage/mysql"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.ForComponent(log.ComponentBackend)
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MySQLBackend:
		return f.createMySQLBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend", log.FieldBackend, config.Type, "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMySQLBackend(ctx context.Context, config Config) (*BackendResult, error) {
	client, err := mysql.NewClient(config.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}
	store, err := mysql.NewStore(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize MySQL store: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized MySQL backend", log.FieldBackend, config.Type, "host", config.MySQL.Host, "database", config.MySQL.DBName)

	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context) (*BackendResult, error) {
	f.logger.InfoContext(ctx, "Initialized memory backend", log.FieldBackend, MemoryBackend)

	return &BackendResult{
		Store:   memory.New(),
		Cleanup: nil,
	}, nil
}
