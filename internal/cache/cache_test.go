package cache

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		FragmentCacheSizeMB: 8,
		FragmentTTL:         time.Minute,
		RecordCacheSize:     2,
	})
	if err != nil {
		t.Fatalf("failed to create cache manager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestKeys(t *testing.T) {
	if got := CellsKey("demo", 7); got != "cells:demo:7" {
		t.Fatalf("unexpected cells key %q", got)
	}
	if got := DiagramKey("demo", 7, "png", "blues"); got != "diagram:demo:7.png:blues" {
		t.Fatalf("unexpected diagram key %q", got)
	}
	if CellsKey("a", 1) == CellsKey("b", 1) {
		t.Fatal("expected dataset to isolate cells keys")
	}
}

func TestFragmentCache(t *testing.T) {
	m := newTestManager(t)

	if _, ok := m.GetFragment("missing"); ok {
		t.Fatal("expected miss for unknown key")
	}
	if err := m.SetFragment("k", []byte("<div></div>")); err != nil {
		t.Fatalf("failed to set fragment: %v", err)
	}
	got, ok := m.GetFragment("k")
	if !ok || string(got) != "<div></div>" {
		t.Fatalf("unexpected fragment %q (ok=%v)", got, ok)
	}

	stats := m.Stats()
	if stats["fragment_cache_hits"] != int64(1) || stats["fragment_cache_misses"] != int64(1) {
		t.Fatalf("unexpected fragment stats: %v", stats)
	}
}

func TestRecordCacheEvicts(t *testing.T) {
	m := newTestManager(t)

	m.SetRecord("a", []byte("1"))
	m.SetRecord("b", []byte("2"))
	m.SetRecord("c", []byte("3"))

	if _, ok := m.GetRecord("a"); ok {
		t.Fatal("expected oldest record to be evicted")
	}
	if v, ok := m.GetRecord("c"); !ok || string(v) != "3" {
		t.Fatalf("unexpected record %q (ok=%v)", v, ok)
	}
	if n := m.Stats()["record_cache_len"]; n != 2 {
		t.Fatalf("expected 2 cached records, got %v", n)
	}
}
