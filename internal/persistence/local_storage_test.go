package persistence

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-board/internal/config"
)

func openTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "storage.db")
	store, err := OpenLocalStorage(context.Background(), config.StorageConfig{Path: path}, zap.NewNop())
	if err != nil {
		t.Fatalf("OpenLocalStorage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStorage(t)

	if _, ok, err := store.Get(ctx, KeyToken); err != nil || ok {
		t.Fatalf("empty Get = ok:%v err:%v", ok, err)
	}

	if err := store.Set(ctx, KeyToken, "first"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, KeyToken, "second"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := store.Get(ctx, KeyToken)
	if err != nil || !ok || got != "second" {
		t.Fatalf("Get = %q ok:%v err:%v", got, ok, err)
	}
}

func TestLocalStorageRemove(t *testing.T) {
	ctx := context.Background()
	store := openTestStorage(t)

	for _, key := range []string{KeyToken, KeyUser, "theme"} {
		if err := store.Set(ctx, key, "v"); err != nil {
			t.Fatalf("Set %s: %v", key, err)
		}
	}
	if err := store.Remove(ctx, KeyToken, KeyUser, "never-set"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	for _, key := range []string{KeyToken, KeyUser} {
		if _, ok, _ := store.Get(ctx, key); ok {
			t.Errorf("%s should be removed", key)
		}
	}
	if _, ok, _ := store.Get(ctx, "theme"); !ok {
		t.Error("unrelated key should survive")
	}
}

func TestLocalStoragePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.db")
	cfg := config.StorageConfig{Path: path}

	first, err := OpenLocalStorage(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Set(ctx, KeyUser, `{"id":7}`); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_ = first.Close()

	second, err := OpenLocalStorage(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	if got, ok, _ := second.Get(ctx, KeyUser); !ok || got != `{"id":7}` {
		t.Fatalf("Get after reopen = %q ok:%v", got, ok)
	}
}
