package registry

import "testing"

func TestAddReleaseCount(t *testing.T) {
	s := New[string]()

	var ids []uint32
	for i := 0; i < 10; i++ {
		id, ok := s.Add("v")
		if !ok {
			t.Fatalf("Add failed at i=%d", i)
		}
		ids = append(ids, id)
	}
	if got := s.Count(); got != 10 {
		t.Fatalf("Count = %d, want 10", got)
	}

	for _, id := range ids[:4] {
		s.Release(id)
	}
	if got := s.Count(); got != 6 {
		t.Fatalf("Count after releasing 4 = %d, want 6", got)
	}
}

func TestAddReusesReleasedIDsLIFO(t *testing.T) {
	s := New[int]()
	a, _ := s.Add(1)
	b, _ := s.Add(2)
	c, _ := s.Add(3)

	s.Release(a)
	s.Release(b)
	s.Release(c)

	// LIFO: the most recently released id comes back first.
	got, _ := s.Add(4)
	if got != c {
		t.Fatalf("first reuse = %d, want %d (most recently released)", got, c)
	}
	got2, _ := s.Add(5)
	if got2 != b {
		t.Fatalf("second reuse = %d, want %d", got2, b)
	}
	got3, _ := s.Add(6)
	if got3 != a {
		t.Fatalf("third reuse = %d, want %d", got3, a)
	}
}

func TestAddUsesSmallestNeverUsedWhenFreeListEmpty(t *testing.T) {
	s := New[int]()
	a, _ := s.Add(1)
	b, _ := s.Add(2)
	if a != 0 || b != 1 {
		t.Fatalf("a=%d b=%d, want 0,1", a, b)
	}
	c, _ := s.Add(3)
	if c != 2 {
		t.Fatalf("c = %d, want 2", c)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	s := New[int]()
	id, _ := s.Add(1)
	s.Release(id)
	s.Release(id) // must not panic or double-count the free list
	s.Release(id)

	got, _ := s.Add(2)
	if got != id {
		t.Fatalf("Add after repeated release = %d, want %d", got, id)
	}
	got2, _ := s.Add(3)
	if got2 == id {
		t.Fatalf("id %d was handed out twice", id)
	}
}

func TestGetReturnsSameEntryAcrossCalls(t *testing.T) {
	s := New[int]()
	id, _ := s.Add(42)

	e1, ok := s.Get(id)
	if !ok {
		t.Fatal("Get failed")
	}
	e1.Mu.Lock()
	if e1.Value != 42 {
		t.Fatalf("Value = %d, want 42", e1.Value)
	}
	e1.Mu.Unlock()

	e2, _ := s.Get(id)
	if e1 != e2 {
		t.Fatal("Get returned different entries for the same id")
	}
}

func TestGetLazilyAllocatesUnusedPage(t *testing.T) {
	s := New[int]()
	id := uint32(PageSize*3 + 17) // a page never touched by Add
	entry, ok := s.Get(id)
	if !ok {
		t.Fatal("Get should succeed for any in-range id")
	}
	entry.Mu.Lock()
	defer entry.Mu.Unlock()
	if entry.Occupied {
		t.Error("freshly allocated page slot should not be occupied")
	}
}

func TestGetRejectsOutOfRangeID(t *testing.T) {
	s := New[int]()
	if _, ok := s.Get(MaxEntries); ok {
		t.Fatal("Get should reject an id at or beyond MaxEntries")
	}
}
