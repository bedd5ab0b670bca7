package xhash

import "testing"

type entry struct {
	id  uint32
	key uint32
}

func TestTableAddFindRemove(t *testing.T) {
	tbl := New(16, 0)
	entries := []entry{
		{id: 100, key: 3},
		{id: 101, key: 3},
		{id: 102, key: 7},
		{id: 103, key: 3},
	}
	store := make([]entry, 104)
	for _, e := range entries {
		store[e.id] = e
		tbl.Add(e.key, e.id)
	}

	found := map[uint32]bool{}
	for i := tbl.First(3); tbl.IsValid(i); i = tbl.Next(i) {
		if store[i].key != 3 {
			t.Fatalf("chain for key 3 contained index %d with key %d", i, store[i].key)
		}
		found[i] = true
	}
	for _, id := range []uint32{100, 101, 103} {
		if !found[id] {
			t.Errorf("expected %d in chain for key 3", id)
		}
	}

	tbl.Remove(3, 101)
	found = map[uint32]bool{}
	for i := tbl.First(3); tbl.IsValid(i); i = tbl.Next(i) {
		found[i] = true
	}
	if found[101] {
		t.Error("101 should have been removed from chain 3")
	}
	if !found[100] || !found[103] {
		t.Error("removing 101 should not disturb siblings 100, 103")
	}
}

func TestTableGrowsOnDemand(t *testing.T) {
	tbl := New(8, 0)
	for i := uint32(0); i < 200; i++ {
		tbl.Add(i%8, i)
	}
	count := 0
	for key := uint32(0); key < 8; key++ {
		for i := tbl.First(key); tbl.IsValid(i); i = tbl.Next(i) {
			count++
		}
	}
	if count != 200 {
		t.Fatalf("expected 200 entries reachable after growth, got %d", count)
	}
}

func TestTableResizeToZeroFrees(t *testing.T) {
	tbl := New(16, 4)
	tbl.Add(1, 0)
	tbl.Resize(0)
	if tbl.indexSize != 0 {
		t.Fatal("Resize(0) should free the index array")
	}
	// First on an empty table must not panic.
	if tbl.IsValid(tbl.First(1)) {
		t.Fatal("expected no chain after Resize(0)")
	}
}

func TestAverageSearchEmpty(t *testing.T) {
	tbl := New(16, 0)
	if got := tbl.AverageSearch(); got != 0 {
		t.Fatalf("AverageSearch on empty table = %v, want 0", got)
	}
}

func TestAverageSearchSingleChain(t *testing.T) {
	tbl := New(16, 0)
	for i := uint32(0); i < 4; i++ {
		tbl.Add(0, i)
	}
	// one bucket with 4 elements: sum = 4*5 = 20, /4 elements, *0.5 = 2.5
	if got := tbl.AverageSearch(); got != 2.5 {
		t.Fatalf("AverageSearch = %v, want 2.5", got)
	}
}

func TestStaticAddFindRemove(t *testing.T) {
	s := NewStatic(8, 16)
	s.Add(2, 5)
	s.Add(2, 9)
	var got []uint32
	for i := s.First(2); s.IsValid(i); i = s.Next(i) {
		got = append(got, i)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %v", got)
	}
	s.Remove(2, 9)
	got = got[:0]
	for i := s.First(2); s.IsValid(i); i = s.Next(i) {
		got = append(got, i)
	}
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("expected [5] after remove, got %v", got)
	}
}

func TestStaticAddOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range Add")
		}
	}()
	s := NewStatic(8, 4)
	s.Add(0, 10)
}

func TestStaticClear(t *testing.T) {
	s := NewStatic(8, 4)
	s.Add(1, 0)
	s.Clear()
	if s.IsValid(s.First(1)) {
		t.Fatal("Clear should empty all chains")
	}
}
