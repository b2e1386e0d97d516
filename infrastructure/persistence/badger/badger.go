// Package badger keeps workspace snapshots in an embedded BadgerDB so a
// restarted process resumes without replaying the event store.
package badger

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Config holds configuration for a BadgerDB instance
type Config struct {
	// Path is the directory for database files; ignored when InMemory is set
	Path string

	// InMemory keeps everything in RAM, for tests
	InMemory bool

	SyncWrites bool

	// Logger receives BadgerDB's internal logs; nil disables them
	Logger *zap.Logger
}

// DefaultConfig returns the production configuration for path
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
	}
}

// InMemoryConfig returns a configuration without disk persistence
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts zap to BadgerDB's Logger interface
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

// Open opens a BadgerDB instance, creating the directory when needed
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}
