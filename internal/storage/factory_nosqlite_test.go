//go:build !sqlite

package storage

import "testing"

func TestNewStoreSQLiteUnavailableWithoutTag(t *testing.T) {
	if _, err := NewStore("sqlite", "ignored.db"); err == nil {
		t.Fatal("expected sqlite backend to be unavailable")
	}
}

func TestDefaultStoreKindWithoutTag(t *testing.T) {
	if got := DefaultStoreKind(); got != "memory" {
		t.Fatalf("expected memory default, got %q", got)
	}
}
