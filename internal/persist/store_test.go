package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Load(ctx, "missing"); err != nil || ok {
		t.Errorf("Load(missing) = ok %v, err %v; want false, nil", ok, err)
	}

	if err := s.Save(ctx, "mr.RouteMessageSender", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, ok, err := s.Load(ctx, "mr.RouteMessageSender")
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v; want true, nil", ok, err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("Load() = %s, want {\"a\":1}", data)
	}

	if err := s.Save(ctx, "mr.RouteMessageSender", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite Save() error = %v", err)
	}
	data, _, _ = s.Load(ctx, "mr.RouteMessageSender")
	if string(data) != `{"a":2}` {
		t.Errorf("Load() after overwrite = %s, want {\"a\":2}", data)
	}

	if err := s.Delete(ctx, "mr.RouteMessageSender"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := s.Load(ctx, "mr.RouteMessageSender"); ok {
		t.Error("Load() after Delete should report missing")
	}
	if err := s.Delete(ctx, "mr.RouteMessageSender"); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStore_CopiesData(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	buf := []byte("abc")
	s.Save(ctx, "k", buf)
	buf[0] = 'z'

	data, _, _ := s.Load(ctx, "k")
	if string(data) != "abc" {
		t.Errorf("Load() = %q, want %q", data, "abc")
	}
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	testStore(t, s)
}

func TestFileStore_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	if err := s.Save(context.Background(), "../escape/key", []byte("x")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != ".._escape_key.json" {
		t.Errorf("entries = %v, want single .._escape_key.json", entries)
	}
}

func TestNewFileStore_RequiresDir(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("NewFileStore(\"\") expected error")
	}
}
