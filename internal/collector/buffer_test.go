package collector

import (
	"testing"
)

func TestBuffer_InsertReplacesSameID(t *testing.T) {
	b := NewBuffer[string]()
	b.Insert(1, "old", 100)
	b.Insert(1, "new", 200)

	if b.Len() != 1 {
		t.Fatalf("Len = %d, want 1", b.Len())
	}
	snap := b.Snapshot()
	if snap[0] != "new" {
		t.Fatalf("snapshot = %v, want replacement to win", snap)
	}
}

func TestBuffer_SnapshotNewestFirst(t *testing.T) {
	b := NewBuffer[int]()
	b.Insert(1, 10, 100)
	b.Insert(2, 20, 300)
	b.Insert(3, 30, 200)

	snap := b.Snapshot()
	want := []int{20, 30, 10}
	for i, v := range want {
		if snap[i] != v {
			t.Fatalf("snapshot = %v, want %v", snap, want)
		}
	}
}

func TestBuffer_EvictDropsOlderThanCutoff(t *testing.T) {
	b := NewBuffer[int]()
	b.Insert(1, 10, 100)
	b.Insert(2, 20, 200)
	b.Insert(3, 30, 300)

	evicted := b.Evict(200)
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2", b.Len())
	}
	for _, v := range b.Snapshot() {
		if v == 10 {
			t.Fatalf("record below cutoff still present")
		}
	}
}
