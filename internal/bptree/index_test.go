package bptree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/conure-db/graphdb/internal/recordio"
)

func openIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.idx")
	records, err := recordio.Open(path, NodeRecordSize, HeaderPayloadSize)
	if err != nil {
		t.Fatalf("recordio.Open: %v", err)
	}
	t.Cleanup(func() { records.Close() })
	return OpenIndex(records)
}

func TestInsertAndSearchSingleKey(t *testing.T) {
	ix := openIndex(t)
	if err := ix.Insert([]byte("Actor"), 1, 2, 3); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := ix.Search([]byte("Actor"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d ids, want 3: %v", len(got), got)
	}
}

func TestInsertAToZThenSearchEach(t *testing.T) {
	ix := openIndex(t)
	for c := byte('A'); c <= 'Z'; c++ {
		if err := ix.Insert([]byte{c}, uint64(c)); err != nil {
			t.Fatalf("Insert(%q): %v", c, err)
		}
	}
	for c := byte('A'); c <= 'Z'; c++ {
		got, err := ix.Search([]byte{c})
		if err != nil {
			t.Fatalf("Search(%q): %v", c, err)
		}
		if len(got) != 1 || got[0] != uint64(c) {
			t.Fatalf("Search(%q) = %v, want [%d]", c, got, c)
		}
	}
}

func TestInsertManyIDsSpansOverflowFragments(t *testing.T) {
	ix := openIndex(t)
	const n = 1000
	ids := make([]uint64, n)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	if err := ix.Insert([]byte("Person"), ids...); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := ix.Search([]byte("Person"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != n {
		t.Fatalf("got %d ids, want %d", len(got), n)
	}
	seen := make(map[uint64]bool, n)
	for _, id := range got {
		seen[id] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[uint64(i)] {
			t.Fatalf("missing id %d after round-trip through overflow fragments", i)
		}
	}

	// spec §8 scenario 2: the posting list packs into at least
	// ceil(1000*8 / (KeySize-2)) fragments, the same packing Store.Save
	// writes as the cell's IS_LIST_PTR chain.
	frags := splitPostingListIntoFragments(ids)
	want := (n*8 + (KeySize - 2) - 1) / (KeySize - 2)
	if len(frags) < want {
		t.Fatalf("posting list packs into %d fragments, want at least %d", len(frags), want)
	}
}

func TestInsertLongKeySpansFragments(t *testing.T) {
	ix := openIndex(t)
	longKey := make([]byte, 5*KeySize)
	for i := range longKey {
		longKey[i] = byte('a' + i%26)
	}
	if err := ix.Insert(longKey, 7); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := ix.Search(longKey)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("got %v, want [7]", got)
	}
}

func TestDeleteRemovesKey(t *testing.T) {
	ix := openIndex(t)
	if err := ix.Insert([]byte("Movie"), 10, 11); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := ix.Delete([]byte("Movie"), true); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := ix.Search([]byte("Movie"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != nil {
		t.Fatalf("expected key to be gone, got %v", got)
	}
}

func TestDeletePartialIDsKeepsKeyUntilEmpty(t *testing.T) {
	ix := openIndex(t)
	if err := ix.Insert([]byte("Movie"), 1, 2, 3); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := ix.Delete([]byte("Movie"), false, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := ix.Search([]byte("Movie"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 remaining ids", got)
	}
	if err := ix.Delete([]byte("Movie"), false, 1, 3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = ix.Search([]byte("Movie"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != nil {
		t.Fatalf("expected key gone once posting list empties, got %v", got)
	}
}

func TestDeleteEveryOtherKeyKeepsTheRest(t *testing.T) {
	ix := openIndex(t)
	const n = 200
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%04d", i))
		if err := ix.Insert(key, uint64(i+1)); err != nil {
			t.Fatalf("Insert(%s): %v", key, err)
		}
	}
	for i := 0; i < n; i += 2 {
		key := []byte(fmt.Sprintf("k%04d", i))
		if err := ix.Delete(key, true); err != nil {
			t.Fatalf("Delete(%s): %v", key, err)
		}
	}
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("k%04d", i))
		got, err := ix.Search(key)
		if err != nil {
			t.Fatalf("Search(%s): %v", key, err)
		}
		if i%2 == 0 {
			if got != nil {
				t.Fatalf("Search(%s) should be gone, got %v", key, got)
			}
		} else {
			if len(got) != 1 || got[0] != uint64(i+1) {
				t.Fatalf("Search(%s) = %v, want [%d]", key, got, i+1)
			}
		}
	}
}

func TestReopenFromFreshStoreInstance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.idx")
	records, err := recordio.Open(path, NodeRecordSize, HeaderPayloadSize)
	if err != nil {
		t.Fatalf("recordio.Open: %v", err)
	}
	ix := OpenIndex(records)
	if err := ix.Insert([]byte("Actor"), 1, 2); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := records.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	records2, err := recordio.Open(path, NodeRecordSize, HeaderPayloadSize)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer records2.Close()
	ix2 := OpenIndex(records2)
	got, err := ix2.Search([]byte("Actor"))
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v after reopen, want 2 ids", got)
	}
}
