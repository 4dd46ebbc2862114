package idempotency

import (
	"context"
	"fmt"
	"strings"

	"trustpay/internal/config"
)

// Open builds the store selected by cfg.Backend: memory, file, postgres or redis.
// The returned close function releases any connection.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return NewMemoryStore(), noop, nil
	case "file":
		fs, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return fs, noop, nil
	case "postgres":
		pg, err := NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return pg, pg.Close, nil
	case "redis":
		rs, err := NewRedisStore(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return rs, func() { _ = rs.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
