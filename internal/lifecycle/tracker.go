// Package lifecycle tracks which restaurants are still live during a run.
package lifecycle

import (
	"sort"
	"sync"
)

// Tracker is the working set of restaurant ids active at the start of a run.
// Ids are removed as the restaurants are sighted upstream; what remains after
// a full traversal is gone upstream. Safe for concurrent use.
type Tracker struct {
	mu  sync.Mutex
	ids map[int]struct{}
}

func New(ids []int) *Tracker {
	t := &Tracker{ids: make(map[int]struct{}, len(ids))}
	for _, id := range ids {
		t.ids[id] = struct{}{}
	}
	return t
}

// Contains reports whether id is still in the working set.
func (t *Tracker) Contains(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	return ok
}

// Seen removes id and reports whether it was present.
func (t *Tracker) Seen(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.ids[id]
	delete(t.ids, id)
	return ok
}

// Remaining returns the ids not yet sighted, sorted.
func (t *Tracker) Remaining() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]int, 0, len(t.ids))
	for id := range t.ids {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ids)
}
