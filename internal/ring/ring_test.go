package ring

import "testing"

func TestEmptyDrain(t *testing.T) {
	rb := New[int](10)
	got := rb.DrainAll()
	if got != nil {
		t.Errorf("expected nil from empty drain, got %d items", len(got))
	}
}

func TestPushAndDrain(t *testing.T) {
	rb := New[int](10)
	for i := 0; i < 5; i++ {
		if rb.Push(i) {
			t.Fatalf("push %d should not overwrite", i)
		}
	}

	got := rb.DrainAll()
	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i := 0; i < 5; i++ {
		if got[i] != i {
			t.Errorf("item %d: expected %d, got %d", i, i, got[i])
		}
	}

	// Second drain should be empty
	if got2 := rb.DrainAll(); got2 != nil {
		t.Errorf("expected nil from second drain, got %d items", len(got2))
	}
}

func TestOverflowKeepsNewest(t *testing.T) {
	capacity := 5
	rb := New[int](capacity)

	// Push cap+3 items (0..7), buffer should keep the most recent 5 (3..7)
	overwrites := 0
	for i := 0; i < capacity+3; i++ {
		if rb.Push(i) {
			overwrites++
		}
	}
	if overwrites != 3 {
		t.Errorf("expected 3 overwrites, got %d", overwrites)
	}
	if rb.Dropped() != 3 {
		t.Errorf("expected Dropped()=3, got %d", rb.Dropped())
	}
	if rb.Len() != capacity {
		t.Errorf("expected len %d, got %d", capacity, rb.Len())
	}

	got := rb.DrainAll()
	for i, v := range got {
		if v != i+3 {
			t.Errorf("item %d: expected %d, got %d", i, i+3, v)
		}
	}
	if rb.Dropped() != 0 {
		t.Error("drain should reset the dropped counter")
	}
}

func TestReuseAfterDrain(t *testing.T) {
	rb := New[string](3)
	rb.Push("a")
	rb.Push("b")
	rb.DrainAll()

	rb.Push("c")
	got := rb.DrainAll()
	if len(got) != 1 || got[0] != "c" {
		t.Errorf("expected [c], got %v", got)
	}
}

func TestMinimumCapacity(t *testing.T) {
	rb := New[int](0)
	rb.Push(1)
	rb.Push(2)
	got := rb.DrainAll()
	if len(got) != 1 || got[0] != 2 {
		t.Errorf("expected [2], got %v", got)
	}
}
