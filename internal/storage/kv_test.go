package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/zhouzirui/vanguard/backend/internal/config"
)

func openBackends(t *testing.T) map[string]KV {
	t.Helper()
	dir := t.TempDir()

	backends := map[string]KV{}
	for _, driver := range []string{"bolt", "sqlite", "memory"} {
		kv, err := Open(config.StoreConfig{Driver: driver, Path: filepath.Join(dir, driver, "store.db")})
		if err != nil {
			t.Fatalf("Open(%s) err: %v", driver, err)
		}
		t.Cleanup(func() { _ = kv.Close() })
		backends[driver] = kv
	}
	return backends
}

func TestKVGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			value, ok, err := kv.Get(ctx, "missing")
			if err != nil {
				t.Fatalf("Get err: %v", err)
			}
			if ok || value != nil {
				t.Fatalf("expected missing key, got ok=%v value=%q", ok, value)
			}
		})
	}
}

func TestKVSetOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, kv := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := kv.Set(ctx, "@chat_history", []byte(`{"a":1}`)); err != nil {
				t.Fatalf("Set err: %v", err)
			}
			if err := kv.Set(ctx, "@chat_history", []byte(`{"b":2}`)); err != nil {
				t.Fatalf("Set err: %v", err)
			}
			if err := kv.Set(ctx, "@system_prompt", []byte("pirate")); err != nil {
				t.Fatalf("Set err: %v", err)
			}

			value, ok, err := kv.Get(ctx, "@chat_history")
			if err != nil || !ok {
				t.Fatalf("Get err=%v ok=%v", err, ok)
			}
			if string(value) != `{"b":2}` {
				t.Fatalf("unexpected value %q", value)
			}

			value, _, _ = kv.Get(ctx, "@system_prompt")
			if string(value) != "pirate" {
				t.Fatalf("unexpected persona value %q", value)
			}
		})
	}
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "vanguard.db")

	kv, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("OpenBolt err: %v", err)
	}
	if err := kv.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	reopened, err := OpenBolt(path)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "k")
	if err != nil || !ok || string(value) != "v" {
		t.Fatalf("expected persisted value, got %q ok=%v err=%v", value, ok, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(config.StoreConfig{Driver: "redis"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
