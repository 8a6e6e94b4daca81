package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rickgao/mediaroute/internal/persist"
)

var _ persist.Store = (*StateStore)(nil)

// newTestStateStore connects to MEDIAROUTE_TEST_DSN or skips.
func newTestStateStore(t *testing.T) *StateStore {
	t.Helper()

	dsn := os.Getenv("MEDIAROUTE_TEST_DSN")
	if dsn == "" {
		t.Skip("MEDIAROUTE_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	store, err := NewStateStore(ctx, pool)
	if err != nil {
		t.Fatalf("NewStateStore() error = %v", err)
	}
	return store
}

func TestStateStore_RoundTrip(t *testing.T) {
	store := newTestStateStore(t)
	ctx := context.Background()
	key := "test." + t.Name()
	t.Cleanup(func() { store.Delete(context.Background(), key) })

	if _, ok, err := store.Load(ctx, key); err != nil || ok {
		t.Fatalf("Load(missing) = ok %v, err %v; want false, nil", ok, err)
	}

	if err := store.Save(ctx, key, []byte(`{"queues":{}}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, key, []byte(`{"queues":{"r1":[]}}`)); err != nil {
		t.Fatalf("Save() upsert error = %v", err)
	}

	data, ok, err := store.Load(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if string(data) != `{"queues":{"r1":[]}}` {
		t.Errorf("Load() = %s, want upserted value", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := store.Load(ctx, key); ok {
		t.Error("Load() after Delete should report missing")
	}
}
