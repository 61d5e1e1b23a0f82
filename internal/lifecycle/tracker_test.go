package lifecycle

import (
	"sync"
	"testing"
)

func TestRemainingAfterSightings(t *testing.T) {
	tr := New([]int{1, 2, 3})
	if !tr.Seen(1) || !tr.Seen(3) {
		t.Fatalf("expected 1 and 3 to be tracked")
	}
	if tr.Seen(4) {
		t.Fatalf("4 was never tracked")
	}
	got := tr.Remaining()
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("expected [2], got %v", got)
	}
	if tr.Contains(1) || !tr.Contains(2) {
		t.Fatalf("unexpected membership after sightings")
	}
}

func TestConcurrentSeen(t *testing.T) {
	ids := make([]int, 200)
	for i := range ids {
		ids[i] = i
	}
	tr := New(ids)
	var wg sync.WaitGroup
	for _, id := range ids {
		if id%2 == 0 {
			continue
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			tr.Seen(id)
		}(id)
	}
	wg.Wait()
	if tr.Len() != 100 {
		t.Fatalf("expected 100 remaining, got %d", tr.Len())
	}
	for _, id := range tr.Remaining() {
		if id%2 != 0 {
			t.Fatalf("odd id %d should have been removed", id)
		}
	}
}
