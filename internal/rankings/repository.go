package rankings

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Repository errors.
var (
	ErrRankingNotFound = errors.New("ranking not found")
	ErrEmptyRanking    = errors.New("ranking is empty")
)

// Repository stores each user's latest full character ranking and answers
// the global aggregation query. Implementations must be safe for concurrent
// use.
type Repository interface {
	// SaveRanking replaces the user's stored ranking with the given order.
	SaveRanking(ctx context.Context, userID string, order []string) error

	// GetRanking returns the user's stored ranking, best first. Returns
	// ErrRankingNotFound when the user has none.
	GetRanking(ctx context.Context, userID string) ([]string, error)

	// UsersWithRankings lists the user IDs with a stored ranking, sorted.
	UsersWithRankings(ctx context.Context) ([]string, error)

	// GlobalTop returns the n characters most frequently appearing in users'
	// top-n, ordered by appearance count descending with name as tie-break.
	GlobalTop(ctx context.Context, n int) ([]string, error)
}

// InMemoryRepository is an in-memory Repository. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu       sync.RWMutex
	rankings map[string][]string
}

// NewInMemoryRepository creates an empty in-memory ranking repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		rankings: make(map[string][]string),
	}
}

// SaveRanking replaces the user's stored ranking.
func (r *InMemoryRepository) SaveRanking(ctx context.Context, userID string, order []string) error {
	if len(order) == 0 {
		return ErrEmptyRanking
	}
	cp := make([]string, len(order))
	copy(cp, order)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rankings[userID] = cp
	return nil
}

// GetRanking returns the user's stored ranking.
func (r *InMemoryRepository) GetRanking(ctx context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.rankings[userID]
	if !ok {
		return nil, ErrRankingNotFound
	}
	cp := make([]string, len(order))
	copy(cp, order)
	return cp, nil
}

// UsersWithRankings lists the user IDs with a stored ranking, sorted.
func (r *InMemoryRepository) UsersWithRankings(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.rankings))
	for id := range r.rankings {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// GlobalTop counts how often each character appears in users' top-n and
// returns the n most frequent.
func (r *InMemoryRepository) GlobalTop(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	r.mu.RLock()
	counts := make(map[string]int)
	for _, order := range r.rankings {
		top := order
		if len(top) > n {
			top = top[:n]
		}
		for _, name := range top {
			counts[name]++
		}
	}
	r.mu.RUnlock()

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names, nil
}
