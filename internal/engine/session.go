// Package engine implements the pairwise comparison ranking session: an
// incremental transitive-closure engine over a fixed set of item indices.
//
// A Session asks the caller to resolve one unordered pair at a time, derives
// every preference implied by transitivity, absorbs contradictory answers
// without ever letting the relation graph go cyclic, and supports undo by
// replaying the remaining history. The engine is synchronous and performs no
// I/O; callers are responsible for serializing concurrent access to a Session.
package engine

import (
	"errors"
	"math/rand"
	"sort"
	"time"
)

// Validation errors returned by RecordChoice.
var (
	// ErrInvalidWinner is returned when the winner is not a member of the pair.
	ErrInvalidWinner = errors.New("winner must be one of the pair")

	// ErrInvalidPair is returned when a pair references indices outside
	// [0, itemCount) or both sides are the same item.
	ErrInvalidPair = errors.New("pair indices out of range")
)

// Pair is an unordered pair of item indices, canonicalized so that A < B.
type Pair struct {
	A int `json:"a" cbor:"a"`
	B int `json:"b" cbor:"b"`
}

// canonicalPair returns the pair with the smaller index first.
func canonicalPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// choice is one history entry: a canonical pair and the index the user chose.
type choice struct {
	pair   Pair
	winner int
}

// Statistics summarizes session progress.
type Statistics struct {
	ComparisonsMade      int     `json:"comparisons_made"`
	MaxComparisons       int     `json:"max_comparisons,omitempty"`
	TotalPairs           int     `json:"total_pairs"`
	TotalRelations       int     `json:"total_relations"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Session is a stateful ranking engine for one user run. It owns the derived
// relation graph, the frontier of unresolved pairs, the choice history used
// for undo, and the learned-preference side model used only to bias pair
// selection.
type Session struct {
	itemCount int
	budget    int // 0 means unlimited

	restricted    bool
	restrictedSet map[int]struct{}

	graph   *closureGraph
	results map[Pair]int // canonical pair -> winning index, direct results only
	history []choice

	frontier map[Pair]struct{}

	compCounts      []int
	comparisonsMade int

	prefs *PreferenceModel

	current *Pair // cached pair returned by CurrentPair
	rng     *rand.Rand
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithBudget limits the session to at most max comparisons. Values <= 0 leave
// the session unbounded.
func WithBudget(max int) Option {
	return func(s *Session) {
		if max > 0 {
			s.budget = max
		}
	}
}

// WithRestrictedIndices limits the pair universe to pairs involving at least
// one of the given indices ("new items only" mode). Indices outside
// [0, itemCount) are ignored.
func WithRestrictedIndices(indices []int) Option {
	return func(s *Session) {
		set := make(map[int]struct{}, len(indices))
		for _, i := range indices {
			if i >= 0 && i < s.itemCount {
				set[i] = struct{}{}
			}
		}
		if len(set) > 0 {
			s.restricted = true
			s.restrictedSet = set
		}
	}
}

// WithRand sets the random source used by the pair selection policy.
// Intended for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Session) {
		s.rng = rng
	}
}

// NewSession creates a session over itemCount items.
func NewSession(itemCount int, opts ...Option) *Session {
	if itemCount < 0 {
		itemCount = 0
	}
	s := &Session{
		itemCount:  itemCount,
		graph:      newClosureGraph(itemCount),
		results:    make(map[Pair]int),
		frontier:   make(map[Pair]struct{}),
		compCounts: make([]int, itemCount),
		prefs:      NewPreferenceModel(itemCount),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.populateFrontier()
	return s
}

// populateFrontier fills the frontier with every candidate pair for the
// session's universe, then removes pairs already known to the graph.
// Used at construction and during post-undo rebuilds.
func (s *Session) populateFrontier() {
	s.frontier = make(map[Pair]struct{})
	if s.restricted {
		for a := range s.restrictedSet {
			for b := 0; b < s.itemCount; b++ {
				if a == b {
					continue
				}
				s.frontier[canonicalPair(a, b)] = struct{}{}
			}
		}
	} else {
		for a := 0; a < s.itemCount; a++ {
			for b := a + 1; b < s.itemCount; b++ {
				s.frontier[Pair{A: a, B: b}] = struct{}{}
			}
		}
	}
	for p := range s.frontier {
		if s.graph.Wins(p.A, p.B) || s.graph.Wins(p.B, p.A) {
			delete(s.frontier, p)
		}
	}
}

// ItemCount returns the number of items in the session's universe.
func (s *Session) ItemCount() int { return s.itemCount }

// Budget returns the comparison budget, or 0 if the session is unbounded.
func (s *Session) Budget() int { return s.budget }

// ComparisonsMade returns the number of recorded comparisons.
func (s *Session) ComparisonsMade() int { return s.comparisonsMade }

// IsCompleted reports whether the session is terminal: the budget is
// exhausted or no unknown pairs remain. Undo can make a completed session
// active again.
func (s *Session) IsCompleted() bool {
	if s.budget > 0 && s.comparisonsMade >= s.budget {
		return true
	}
	return len(s.frontier) == 0
}

// CurrentPair returns the pair the caller should ask the user about, or
// (Pair{}, false) when the session is complete. Repeated calls without an
// intervening RecordChoice or UndoLastChoice return the same pair.
func (s *Session) CurrentPair() (Pair, bool) {
	if s.IsCompleted() {
		s.current = nil
		return Pair{}, false
	}
	if s.current == nil {
		p, ok := s.selectNextPair()
		if !ok {
			return Pair{}, false
		}
		s.current = &p
	}
	return *s.current, true
}

// RecordChoice records that winner beat the other member of pair.
//
// A pair that already has a direct result is a no-op: it changes neither the
// comparison count nor the history. A choice that would create a cycle in the
// derived graph is absorbed: the direct result, history entry, and learning
// update all happen, but the contradicting edge is never inserted. All other
// choices insert the edge and propagate the transitive closure.
func (s *Session) RecordChoice(pair Pair, winner int) error {
	if winner != pair.A && winner != pair.B {
		return ErrInvalidWinner
	}
	if pair.A < 0 || pair.A >= s.itemCount || pair.B < 0 || pair.B >= s.itemCount || pair.A == pair.B {
		return ErrInvalidPair
	}

	p := canonicalPair(pair.A, pair.B)
	s.current = nil

	// Repeated direct comparison of the same pair: ignore, whatever the winner.
	if _, done := s.results[p]; done {
		return nil
	}

	loser := p.A
	if winner == p.A {
		loser = p.B
	}

	// The reverse relation already holds transitively: inserting winner->loser
	// would close a cycle. Absorb the answer without touching the graph.
	if s.graph.Wins(loser, winner) {
		s.commitDirectResult(p, winner)
		return nil
	}

	s.commitDirectResult(p, winner)

	// Already implied transitively and consistent; nothing new to propagate.
	if s.graph.Wins(winner, loser) {
		return nil
	}

	s.graph.addWithClosure(winner, loser, func(a, b int) {
		delete(s.frontier, canonicalPair(a, b))
	})
	return nil
}

// commitDirectResult records the direct result, history entry, counters, and
// learning update shared by the accept and conflict-absorption paths.
func (s *Session) commitDirectResult(p Pair, winner int) {
	s.results[p] = winner
	s.comparisonsMade++
	s.compCounts[p.A]++
	s.compCounts[p.B]++
	s.history = append(s.history, choice{pair: p, winner: winner})
	s.prefs.Learn(p, winner)
	delete(s.frontier, p)
}

// UndoLastChoice removes the most recent choice and rebuilds the derived
// graph and frontier from the remaining history. Returns false when there is
// nothing to undo.
//
// The rebuild is a full replay rather than an incremental retraction: a
// closure edge may be justified by several direct results, so edges cannot be
// subtracted in isolation.
func (s *Session) UndoLastChoice() bool {
	if len(s.history) == 0 {
		return false
	}

	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]

	delete(s.results, last.pair)
	s.comparisonsMade--
	s.compCounts[last.pair.A]--
	s.compCounts[last.pair.B]--

	s.rebuildFromDirect()
	s.current = nil
	return true
}

// rebuildFromDirect clears the derived graph and replays every remaining
// direct result, in insertion order, through the same accept-or-conflict
// logic as RecordChoice. The frontier is regenerated afterwards so that it
// again holds exactly the pairs with no direct or derived relation.
func (s *Session) rebuildFromDirect() {
	s.graph.reset()

	for _, c := range s.history {
		loser := c.pair.A
		if c.winner == c.pair.A {
			loser = c.pair.B
		}
		if s.graph.Wins(loser, c.winner) {
			continue // would create a cycle, keep it absorbed
		}
		if s.graph.Wins(c.winner, loser) {
			continue // already implied
		}
		s.graph.addWithClosure(c.winner, loser, nil)
	}

	s.populateFrontier()
	for p := range s.results {
		delete(s.frontier, p)
	}
}

// PeekLastPair returns the pair of the most recent history entry without
// mutating anything. Used to re-display a pair after an undo.
func (s *Session) PeekLastPair() (Pair, bool) {
	if len(s.history) == 0 {
		return Pair{}, false
	}
	return s.history[len(s.history)-1].pair, true
}

// Wins reports whether item u is known, directly or transitively, to beat v.
func (s *Session) Wins(u, v int) bool {
	return s.graph.Wins(u, v)
}

// WinCount returns the number of items the given item beats in the closure.
func (s *Session) WinCount(i int) int {
	return s.graph.WinCount(i)
}

// LearnedPreference returns the learned soft preference of a over b in
// [0, 1]. Out-of-range indices and self pairs return the neutral 0.5.
func (s *Session) LearnedPreference(a, b int) float64 {
	return s.prefs.Preference(a, b)
}

// TotalPairs returns the denominator for progress reporting: the budget when
// one is set, the restricted pair universe in restricted mode, otherwise all
// N*(N-1)/2 pairs.
func (s *Session) TotalPairs() int {
	if s.budget > 0 {
		return s.budget
	}
	if s.restricted {
		return len(s.frontier)
	}
	return s.itemCount * (s.itemCount - 1) / 2
}

// Statistics returns a progress summary for the session.
func (s *Session) Statistics() Statistics {
	denom := s.TotalPairs()
	if denom == 0 {
		denom = 1
	}
	pct := float64(s.comparisonsMade) / float64(denom) * 100.0
	if pct > 100.0 {
		pct = 100.0
	}
	return Statistics{
		ComparisonsMade:      s.comparisonsMade,
		MaxComparisons:       s.budget,
		TotalPairs:           s.TotalPairs(),
		TotalRelations:       s.graph.EdgeCount(),
		CompletionPercentage: pct,
	}
}

// FinalRanking returns every item index ordered winners-first: descending
// transitive win count, ties broken by ascending item index. The index
// tie-break matches the behavior this engine replaces; it can under-rank
// items that were compared late in a short session.
func (s *Session) FinalRanking() []int {
	ranking := make([]int, s.itemCount)
	for i := range ranking {
		ranking[i] = i
	}
	sort.SliceStable(ranking, func(i, j int) bool {
		return s.graph.WinCount(ranking[i]) > s.graph.WinCount(ranking[j])
	})
	return ranking
}
