package idempotency

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/pagesmith/internal/config"
	"git.home.luguber.info/inful/pagesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

// Open creates the configured store.
func Open(ctx context.Context, cfg config.IdempotencyConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory, "":
		s = NewMemoryStore()
	case config.BackendSQLite:
		s, err = NewSQLiteStore(cfg.SQLitePath)
	case config.BackendNATS:
		s, err = NewNATSStore(ctx, cfg.NATSURL, cfg.NATSBucket)
	default:
		return nil, errors.ConfigError("unknown idempotency backend").
			WithContext("backend", string(cfg.Backend)).
			Build()
	}
	if err != nil {
		return nil, err
	}
	slog.Info("Idempotency store ready", logfields.Backend(string(cfg.Backend)))
	return s, nil
}
