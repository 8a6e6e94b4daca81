package persist_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rickgao/mediaroute/internal/persist"
	"github.com/rickgao/mediaroute/internal/router"
)

func TestManager_SenderRoundTrip(t *testing.T) {
	store := persist.NewMemoryStore()
	ctx := context.Background()

	sender := router.NewSender(router.DefaultConfig(), nil, nil, nil)
	sender.Listen("r1")
	sender.SendText("r1", "queued while suspended")

	m := persist.NewManager(store, nil)
	if err := m.Register(sender); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := m.Suspend(ctx); err != nil {
		t.Fatalf("Suspend() error = %v", err)
	}

	fresh := router.NewSender(router.DefaultConfig(), nil, nil, nil)
	m2 := persist.NewManager(store, nil)
	m2.Register(fresh)
	if err := m2.Resume(ctx); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	if fresh.QueueLen("r1") != 1 || !fresh.IsListening("r1") {
		t.Errorf("fresh sender: QueueLen = %d, listening = %v; want 1, true",
			fresh.QueueLen("r1"), fresh.IsListening("r1"))
	}
}

func TestManager_SuspendRefusesBinary(t *testing.T) {
	sender := router.NewSender(router.DefaultConfig(), nil, nil, nil)
	sender.SendBinary("r1", []byte{1})

	m := persist.NewManager(persist.NewMemoryStore(), nil)
	m.Register(sender)

	if err := m.Suspend(context.Background()); !errors.Is(err, router.ErrBinaryPersistence) {
		t.Errorf("Suspend() error = %v, want ErrBinaryPersistence", err)
	}
}

func TestManager_RunSkipsBinarySentAfterCheck(t *testing.T) {
	store := persist.NewMemoryStore()
	sender := router.NewSender(router.DefaultConfig(), nil, nil, nil)
	sender.SendText("r1", "text")

	m := persist.NewManager(store, nil)
	m.Register(sender)

	// Keep-alive is clear when checked, then a binary message lands before
	// the snapshot is taken.
	canSuspend := func() bool {
		clear := !sender.KeepAlive()
		if sender.QueueLen("r2") == 0 {
			sender.SendBinary("r2", []byte{1})
		}
		return clear
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx, 10*time.Millisecond, canSuspend); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	stats := m.Stats()
	if stats.Failures != 0 {
		t.Errorf("Failures = %d, want 0", stats.Failures)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if _, ok, _ := store.Load(context.Background(), router.PersistKey); ok {
		t.Error("no snapshot should be saved while a binary message is queued")
	}
}
