// Package notify tracks newly added characters that users have not rated yet
// and fans session events out to connected websocket listeners.
package notify

import (
	"log/slog"
	"sync"
)

// Tracker remembers which characters were added after users last ranked.
// A character stays "new" until it is marked rated. Thread-safe.
type Tracker struct {
	logger *slog.Logger

	mu    sync.RWMutex
	fresh []string
	index map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		logger: logger,
		index:  make(map[string]struct{}),
	}
}

// Add registers character names as new. Duplicates are ignored.
func (t *Tracker) Add(names []string) {
	t.mu.Lock()
	var added []string
	for _, n := range names {
		if _, ok := t.index[n]; ok {
			continue
		}
		t.index[n] = struct{}{}
		t.fresh = append(t.fresh, n)
		added = append(added, n)
	}
	t.mu.Unlock()

	if len(added) > 0 {
		t.logger.Info("new characters registered", "names", added)
	}
}

// All returns every currently new character, in insertion order.
func (t *Tracker) All() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.fresh))
	copy(out, t.fresh)
	return out
}

// ForUser returns the new characters absent from the user's rated names.
func (t *Tracker) ForUser(rated []string) []string {
	seen := make(map[string]struct{}, len(rated))
	for _, n := range rated {
		seen[n] = struct{}{}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []string
	for _, n := range t.fresh {
		if _, ok := seen[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// HasNew reports whether any new character is missing from the rated names.
func (t *Tracker) HasNew(rated []string) bool {
	return len(t.ForUser(rated)) > 0
}

// MarkRated removes characters from the new set once rated.
func (t *Tracker) MarkRated(names []string) {
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.fresh[:0]
	for _, n := range t.fresh {
		if _, ok := drop[n]; ok {
			delete(t.index, n)
			continue
		}
		kept = append(kept, n)
	}
	t.fresh = kept
}
