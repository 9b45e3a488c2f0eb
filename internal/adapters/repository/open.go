package repository

import (
	"context"
	"fmt"
	"strings"
)

// Drivers accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config selects and configures a snapshot backend.
type Config struct {
	Driver     string
	Dir        string
	SQLitePath string
}

// Open builds a Store for cfg. The store's logger is shared with the backend.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := NewStore(nil, opts...)
	var (
		b   Backend
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverFile:
		b, err = NewFileBackend(cfg.Dir)
	case DriverSQLite:
		b, err = NewSQLiteBackend(ctx, cfg.SQLitePath, s.logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	s.backend = b
	return s, nil
}
