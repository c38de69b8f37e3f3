package message

import (
	"sort"
	"sync"
)

// Timeline is a de-duplicated message list. History is merged in send
// order; live messages are appended in arrival order.
type Timeline struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	items []Formatted
}

func NewTimeline() *Timeline {
	return &Timeline{seen: make(map[string]struct{})}
}

// Append adds a live message and reports whether it was new.
func (t *Timeline) Append(m Formatted) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, dup := t.seen[m.ID]; dup {
		return false
	}
	t.seen[m.ID] = struct{}{}
	t.items = append(t.items, m)
	return true
}

// Merge adds a history batch and re-sorts the whole list by send time.
func (t *Timeline) Merge(batch []Formatted) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range batch {
		if _, dup := t.seen[m.ID]; dup {
			continue
		}
		t.seen[m.ID] = struct{}{}
		t.items = append(t.items, m)
	}
	SortChronological(t.items)
}

func (t *Timeline) Items() []Formatted {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Formatted, len(t.items))
	copy(out, t.items)
	return out
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Reset drops every message, as when the chat view closes.
func (t *Timeline) Reset() {
	t.mu.Lock()
	t.seen = make(map[string]struct{})
	t.items = nil
	t.mu.Unlock()
}

// SortChronological orders by send time ascending. Messages with equal
// timestamps keep their relative order.
func SortChronological(msgs []Formatted) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
