package kv_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"mpproj/internal/kv"
)

// exerciseStore runs the behaviour every driver must share.
func exerciseStore(t *testing.T, s kv.Store) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("get missing: %v", err)
	}
	keys := []string{"snapshot_b", "snapshot_a/with slash", "saved_projects"}
	for i, k := range keys {
		if err := s.Set(ctx, k, []byte{byte('0' + i)}); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	if err := s.Set(ctx, "snapshot_b", []byte("replaced")); err != nil {
		t.Fatal(err)
	}
	v, err := s.Get(ctx, "snapshot_b")
	if err != nil || string(v) != "replaced" {
		t.Fatalf("get after overwrite: %q %v", v, err)
	}
	got, err := s.Keys(ctx, "snapshot_")
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"snapshot_a/with slash", "snapshot_b"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys %v want %v", got, want)
	}
	if err := s.Delete(ctx, "snapshot_b"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "snapshot_b"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.Get(ctx, "snapshot_b"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("get deleted: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := kv.NewMemory()
	exerciseStore(t, s)
	if s.Driver() != kv.DriverMemory {
		t.Fatalf("driver %s", s.Driver())
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf)
	buf[0] = 'x'
	v, _ := s.Get(ctx, "k")
	if string(v) != "abc" {
		t.Fatalf("stored value aliased caller buffer: %s", v)
	}
}

func TestFilesystemStore(t *testing.T) {
	s, err := kv.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exerciseStore(t, s)
	if _, err := kv.NewFilesystem(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestQuota(t *testing.T) {
	ctx := context.Background()
	base := kv.NewMemory()
	_ = base.Set(ctx, "existing", make([]byte, 4))
	s, err := kv.WithQuota(ctx, base, 10)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "a", make([]byte, 6)); err != nil {
		t.Fatalf("within quota: %v", err)
	}
	if err := s.Set(ctx, "b", make([]byte, 1)); !errors.Is(err, kv.ErrQuotaExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if _, err := base.Get(ctx, "b"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("rejected write reached the store")
	}
	if err := s.Set(ctx, "a", make([]byte, 2)); err != nil {
		t.Fatalf("shrinking overwrite: %v", err)
	}
	if err := s.Delete(ctx, "existing"); err != nil {
		t.Fatal(err)
	}
	if used := s.(*kv.Quota).Used(); used != 2 {
		t.Fatalf("used %d", used)
	}
	unlimited, _ := kv.WithQuota(ctx, base, 0)
	if unlimited != kv.Store(base) {
		t.Fatalf("zero limit should return the store unchanged")
	}
}

func TestParseDriver(t *testing.T) {
	if d, err := kv.ParseDriver(""); err != nil || d != kv.DriverSQLite {
		t.Fatalf("default driver %s %v", d, err)
	}
	if _, err := kv.ParseDriver("redis"); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}
