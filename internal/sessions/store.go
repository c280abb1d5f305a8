package sessions

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/charrank/internal/engine"
)

// Store errors.
var (
	ErrSnapshotNotFound = errors.New("session snapshot not found")
)

// SnapshotStore persists session snapshots keyed by user ID. Implementations
// must be safe for concurrent use.
type SnapshotStore interface {
	// Save stores the snapshot for a user, replacing any existing one.
	Save(ctx context.Context, userID string, snap *engine.Snapshot) error

	// Load retrieves a user's snapshot. Returns ErrSnapshotNotFound when the
	// user has no saved session.
	Load(ctx context.Context, userID string) (*engine.Snapshot, error)

	// Delete removes a user's snapshot. Deleting a missing snapshot is not
	// an error.
	Delete(ctx context.Context, userID string) error

	// Users lists the user IDs with a saved snapshot, sorted.
	Users(ctx context.Context) ([]string, error)
}

// storedSnapshot is one in-memory entry: the encoded blob plus its save time.
// Storing the encoded form keeps the in-memory and Postgres stores honest
// about what survives a round trip.
type storedSnapshot struct {
	data    []byte
	savedAt time.Time
}

// InMemoryStore is an in-memory SnapshotStore. Thread-safe via RWMutex.
type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]storedSnapshot
}

// NewInMemoryStore creates an empty in-memory snapshot store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		snapshots: make(map[string]storedSnapshot),
	}
}

// Save stores the snapshot for a user, replacing any existing one.
func (s *InMemoryStore) Save(ctx context.Context, userID string, snap *engine.Snapshot) error {
	data, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[userID] = storedSnapshot{data: data, savedAt: time.Now()}
	return nil
}

// Load retrieves a user's snapshot.
func (s *InMemoryStore) Load(ctx context.Context, userID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	entry, ok := s.snapshots[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return DecodeSnapshot(entry.data)
}

// Delete removes a user's snapshot.
func (s *InMemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, userID)
	return nil
}

// Users lists the user IDs with a saved snapshot, sorted.
func (s *InMemoryStore) Users(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
