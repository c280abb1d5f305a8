// Package sessions maintains the per-user registry of active ranking
// sessions and their persistence. The engine itself is single-threaded; this
// package is the concurrency and durability boundary around it.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/charrank/internal/engine"
)

// Registry errors.
var (
	ErrSessionNotFound = errors.New("no active session for user")
	ErrInvalidUserID   = errors.New("invalid user id")
	ErrTooFewItems     = errors.New("need at least two items to rank")
	ErrNoNewCharacters = errors.New("no new characters to rate")
)

// flushEvery is the deferred-save cadence: snapshots are written on every
// flushEvery-th choice and on completion; other choices only mark the
// session dirty.
const flushEvery = 5

// managed wraps a session with its persistence bookkeeping.
type managed struct {
	session    *engine.Session
	dirty      bool
	lastActive time.Time
}

// Service is the per-user session registry. All engine access goes through
// the service mutex; a Session is never touched concurrently.
type Service struct {
	store   SnapshotStore
	logger  *slog.Logger
	metrics *Metrics

	mu       sync.Mutex
	sessions map[string]*managed
}

// NewService creates a registry backed by the given snapshot store.
// metrics may be nil.
func NewService(store SnapshotStore, logger *slog.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]*managed),
	}
}

// Create starts a new session for the user over itemCount items, replacing
// any existing session. budget <= 0 means unlimited comparisons.
func (s *Service) Create(ctx context.Context, userID string, itemCount, budget int) (*engine.Session, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if itemCount < 2 {
		return nil, ErrTooFewItems
	}

	var opts []engine.Option
	if budget > 0 {
		opts = append(opts, engine.WithBudget(budget))
	}
	sess := engine.NewSession(itemCount, opts...)

	s.mu.Lock()
	s.sessions[userID] = &managed{session: sess, lastActive: time.Now()}
	s.mu.Unlock()

	s.metrics.incSessionsStarted()
	s.logger.Info("session created",
		slog.String("user_id", userID),
		slog.Int("items", itemCount),
		slog.Int("budget", budget))

	if err := s.save(ctx, userID, sess); err != nil {
		s.logger.Error("failed to save new session", "user_id", userID, "error", err)
	}
	return sess, nil
}

// CreateNewCharacters starts a session restricted to pairs involving the
// given newly added item indices, replacing any existing session.
func (s *Service) CreateNewCharacters(ctx context.Context, userID string, itemCount int, newIndices []int) (*engine.Session, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if itemCount < 2 {
		return nil, ErrTooFewItems
	}
	if len(newIndices) == 0 {
		return nil, ErrNoNewCharacters
	}

	sess := engine.NewSession(itemCount, engine.WithRestrictedIndices(newIndices))

	s.mu.Lock()
	s.sessions[userID] = &managed{session: sess, lastActive: time.Now()}
	s.mu.Unlock()

	s.metrics.incSessionsStarted()
	s.logger.Info("new-characters session created",
		slog.String("user_id", userID),
		slog.Int("new_items", len(newIndices)))

	if err := s.save(ctx, userID, sess); err != nil {
		s.logger.Error("failed to save new session", "user_id", userID, "error", err)
	}
	return sess, nil
}

// Get returns the user's active session, restoring it from the snapshot
// store if it is not in memory. Returns ErrSessionNotFound when neither
// exists.
func (s *Service) Get(ctx context.Context, userID string) (*engine.Session, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	s.mu.Lock()
	if m, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return m.session, nil
	}
	s.mu.Unlock()

	snap, err := s.store.Load(ctx, userID)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	sess := engine.Restore(snap)
	s.mu.Lock()
	// Another goroutine may have raced the restore; keep whichever landed.
	if m, ok := s.sessions[userID]; ok {
		s.mu.Unlock()
		return m.session, nil
	}
	s.sessions[userID] = &managed{session: sess, lastActive: time.Now()}
	s.mu.Unlock()

	s.logger.Info("session restored from store", slog.String("user_id", userID))
	return sess, nil
}

// CurrentPair returns the pair the user should be asked about next.
func (s *Service) CurrentPair(ctx context.Context, userID string) (engine.Pair, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[userID]
	if !ok {
		return engine.Pair{}, false, ErrSessionNotFound
	}
	p, active := m.session.CurrentPair()
	return p, active, nil
}

// RecordChoice records a user's choice and applies the deferred-save policy:
// a snapshot write on every fifth comparison and on completion, a dirty mark
// otherwise.
func (s *Service) RecordChoice(ctx context.Context, userID string, pair engine.Pair, winner int) error {
	s.mu.Lock()
	m, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return ErrSessionNotFound
	}

	loser := pair.A
	if winner == pair.A {
		loser = pair.B
	}
	reversed := m.session.Wins(loser, winner)
	before := m.session.ComparisonsMade()

	if err := m.session.RecordChoice(pair, winner); err != nil {
		s.mu.Unlock()
		return err
	}
	m.lastActive = time.Now()

	sess := m.session
	// A repeated pair is a no-op inside the engine; only a committed new
	// direct result against a pre-existing reverse relation was absorbed.
	conflict := reversed && sess.ComparisonsMade() > before
	completed := sess.IsCompleted()
	mustFlush := completed || sess.ComparisonsMade()%flushEvery == 0
	m.dirty = !mustFlush
	s.mu.Unlock()

	s.metrics.incChoicesRecorded()
	if conflict {
		s.metrics.incConflictsAbsorbed()
		s.logger.Debug("conflicting choice absorbed",
			slog.String("user_id", userID),
			slog.Int("winner", winner))
	}

	if mustFlush {
		if err := s.save(ctx, userID, sess); err != nil {
			s.logger.Error("failed to save session", "user_id", userID, "error", err)
		}
	}
	return nil
}

// Undo reverts the user's most recent choice. Returns false when there is
// nothing to undo.
func (s *Service) Undo(ctx context.Context, userID string) (bool, error) {
	s.mu.Lock()
	m, ok := s.sessions[userID]
	if !ok {
		s.mu.Unlock()
		return false, ErrSessionNotFound
	}
	undone := m.session.UndoLastChoice()
	if undone {
		m.dirty = true
		m.lastActive = time.Now()
	}
	s.mu.Unlock()

	if undone {
		s.metrics.incUndosPerformed()
	}
	return undone, nil
}

// Remove drops the user's session from memory and the store.
func (s *Service) Remove(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	s.logger.Info("session removed", slog.String("user_id", userID))
	return nil
}

// FlushDirty writes a snapshot for every session with unsaved changes.
// Returns the number of sessions flushed.
func (s *Service) FlushDirty(ctx context.Context) int {
	type pending struct {
		userID string
		sess   *engine.Session
	}

	s.mu.Lock()
	var toFlush []pending
	for id, m := range s.sessions {
		if m.dirty {
			toFlush = append(toFlush, pending{userID: id, sess: m.session})
			m.dirty = false
		}
	}
	s.mu.Unlock()

	flushed := 0
	for _, p := range toFlush {
		if err := s.save(ctx, p.userID, p.sess); err != nil {
			s.logger.Error("failed to flush session", "user_id", p.userID, "error", err)
			continue
		}
		flushed++
	}
	return flushed
}

// CleanupCompleted removes completed sessions and sessions idle for longer
// than maxAge. Returns the number removed.
func (s *Service) CleanupCompleted(ctx context.Context, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	var remove []string
	for id, m := range s.sessions {
		if m.session.IsCompleted() || (maxAge > 0 && m.lastActive.Before(cutoff)) {
			remove = append(remove, id)
		}
	}
	for _, id := range remove {
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, id := range remove {
		if err := s.store.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to delete snapshot during cleanup", "user_id", id, "error", err)
		}
	}
	if len(remove) > 0 {
		s.logger.Info("sessions cleaned up", "count", len(remove))
	}
	return len(remove)
}

// ActiveCount returns the number of sessions currently in memory.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// save writes one session's snapshot to the store.
func (s *Service) save(ctx context.Context, userID string, sess *engine.Session) error {
	s.mu.Lock()
	snap := sess.Snapshot()
	s.mu.Unlock()

	if err := s.store.Save(ctx, userID, snap); err != nil {
		s.metrics.incSnapshotSaveErrs()
		return err
	}
	s.metrics.incSnapshotsSaved()
	return nil
}
