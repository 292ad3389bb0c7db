// Package storage provides the durable key-value backends behind the local
// conversation store. Every backend stores opaque byte values under string keys;
// absent keys are reported with ok=false rather than an error.
package storage

import (
	"context"
	"fmt"

	"github.com/zhouzirui/vanguard/backend/internal/config"
)

// KV is a minimal durable key-value store.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Open returns the backend selected by cfg.Driver.
func Open(cfg config.StoreConfig) (KV, error) {
	switch cfg.Driver {
	case "bolt", "":
		return OpenBolt(cfg.Path)
	case "sqlite":
		return OpenSQLite(cfg.Path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
