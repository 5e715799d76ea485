package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	testStoreRoundTrip(t, s)
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "parley.db")

	s, err := NewSQLiteStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testStoreRoundTrip(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "parley.db")

	s, err := NewSQLiteStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewSQLiteStore err: %v", err)
	}
	if err := s.Put(ctx, "chat:history:abc", []byte(`[{"role":"user","content":"hi"}]`)); err != nil {
		t.Fatalf("Put err: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close err: %v", err)
	}

	reopened, err := NewSQLiteStore(ctx, dsn)
	if err != nil {
		t.Fatalf("reopen err: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	value, ok, err := reopened.Get(ctx, "chat:history:abc")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if !ok {
		t.Fatal("expected key to survive reopen")
	}
	if string(value) != `[{"role":"user","content":"hi"}]` {
		t.Fatalf("unexpected value: %s", value)
	}
}

func testStoreRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss for absent key, ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put err: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("overwrite Put err: %v", err)
	}

	value, ok, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if !ok || string(value) != "v2" {
		t.Fatalf("expected overwritten value v2, got %q ok=%v", value, ok)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete err: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatal("expected key to be gone after delete")
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("deleting absent key should not error: %v", err)
	}
}
