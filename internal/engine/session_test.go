package engine

import (
	"math/rand"
	"testing"
)

// newTestSession creates a session with a fixed seed so selection is
// deterministic across runs.
func newTestSession(t *testing.T, itemCount int, opts ...Option) *Session {
	t.Helper()
	opts = append(opts, WithRand(rand.New(rand.NewSource(42))))
	return NewSession(itemCount, opts...)
}

// mustRecord records a choice and fails the test on error.
func mustRecord(t *testing.T, s *Session, a, b, winner int) {
	t.Helper()
	if err := s.RecordChoice(Pair{A: a, B: b}, winner); err != nil {
		t.Fatalf("RecordChoice((%d,%d), %d) failed: %v", a, b, winner, err)
	}
}

// checkInvariants verifies the three structural invariants that must hold
// after every mutation: acyclicity, closure completeness, and
// frontier/graph disjointness.
func checkInvariants(t *testing.T, s *Session) {
	t.Helper()
	n := s.ItemCount()

	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			if a != b && s.Wins(a, b) && s.Wins(b, a) {
				t.Fatalf("acyclicity violated: wins(%d,%d) and wins(%d,%d)", a, b, b, a)
			}
		}
	}

	for a := 0; a < n; a++ {
		for b := 0; b < n; b++ {
			for c := 0; c < n; c++ {
				if s.Wins(a, b) && s.Wins(b, c) && !s.Wins(a, c) {
					t.Fatalf("closure incomplete: wins(%d,%d) and wins(%d,%d) but not wins(%d,%d)", a, b, b, c, a, c)
				}
			}
		}
	}

	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			p := Pair{A: a, B: b}
			if s.restricted {
				_, inA := s.restrictedSet[a]
				_, inB := s.restrictedSet[b]
				if !inA && !inB {
					continue // outside the restricted universe
				}
			}
			_, inFrontier := s.frontier[p]
			_, hasDirect := s.results[p]
			known := hasDirect || s.Wins(a, b) || s.Wins(b, a)
			if inFrontier == known {
				t.Fatalf("frontier invariant violated for (%d,%d): inFrontier=%v direct=%v wins=%v/%v",
					a, b, inFrontier, hasDirect, s.Wins(a, b), s.Wins(b, a))
			}
		}
	}
}

func TestTransitiveDerivation(t *testing.T) {
	// Scenario: 0 beats 1, 1 beats 2 => 0 beats 2 without being asked.
	s := newTestSession(t, 3, WithBudget(3))

	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 1, 2, 1)

	if !s.Wins(0, 2) {
		t.Error("expected wins(0,2) to be derived transitively")
	}
	if _, ok := s.frontier[Pair{A: 0, B: 2}]; ok {
		t.Error("derived pair (0,2) should have left the frontier")
	}
	if !s.IsCompleted() {
		t.Error("session with empty frontier should be completed")
	}
	checkInvariants(t, s)
}

func TestConflictAbsorption(t *testing.T) {
	// A choice contradicting a derived relation must not create a cycle,
	// but still counts as a comparison.
	s := newTestSession(t, 3, WithBudget(3))

	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 1, 2, 1)
	mustRecord(t, s, 0, 2, 2) // contradicts derived wins(0,2)

	if s.Wins(2, 0) {
		t.Error("conflicting choice must not insert wins(2,0)")
	}
	if !s.Wins(0, 2) {
		t.Error("established relation wins(0,2) must survive the conflict")
	}
	if got := s.ComparisonsMade(); got != 3 {
		t.Errorf("comparisons made = %d, want 3", got)
	}
	if !s.IsCompleted() {
		t.Error("session should be completed")
	}
	if _, ok := s.PeekLastPair(); !ok {
		t.Error("conflicting choice should still be in history")
	}
	checkInvariants(t, s)
}

func TestUndoReturnsFalseOnEmptyHistory(t *testing.T) {
	s := newTestSession(t, 4)

	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 2, 3, 3)

	if !s.UndoLastChoice() {
		t.Error("first undo should succeed")
	}
	if !s.UndoLastChoice() {
		t.Error("second undo should succeed")
	}
	if s.UndoLastChoice() {
		t.Error("undo on empty history should return false")
	}
	if got := s.ComparisonsMade(); got != 0 {
		t.Errorf("comparisons made after undoing everything = %d, want 0", got)
	}
}

func TestInvalidWinnerRejected(t *testing.T) {
	s := newTestSession(t, 4)

	if err := s.RecordChoice(Pair{A: 0, B: 1}, 2); err != ErrInvalidWinner {
		t.Errorf("RecordChoice with foreign winner = %v, want ErrInvalidWinner", err)
	}
	if got := s.ComparisonsMade(); got != 0 {
		t.Errorf("comparisons made after rejected choice = %d, want 0", got)
	}
	if _, ok := s.PeekLastPair(); ok {
		t.Error("rejected choice must not reach history")
	}
}

func TestOutOfRangePairRejected(t *testing.T) {
	s := newTestSession(t, 3)

	tests := []struct {
		name string
		pair Pair
	}{
		{"index beyond item count", Pair{A: 0, B: 7}},
		{"negative index", Pair{A: -1, B: 0}},
		{"self pair", Pair{A: 1, B: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.RecordChoice(tt.pair, tt.pair.A); err != ErrInvalidPair {
				t.Errorf("RecordChoice(%+v) = %v, want ErrInvalidPair", tt.pair, err)
			}
		})
	}
	if got := s.ComparisonsMade(); got != 0 {
		t.Errorf("comparisons made = %d, want 0", got)
	}
}

func TestRepeatedPairIsNoOp(t *testing.T) {
	s := newTestSession(t, 4)

	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 0, 1, 0) // same winner
	mustRecord(t, s, 1, 0, 1) // same pair, flipped order and winner

	if got := s.ComparisonsMade(); got != 1 {
		t.Errorf("comparisons made = %d, want 1 (repeats must not count)", got)
	}
	if !s.Wins(0, 1) {
		t.Error("original result must stand")
	}
	if s.Wins(1, 0) {
		t.Error("repeated pair with different winner must not flip the relation")
	}
	checkInvariants(t, s)
}

func TestUndoIsExactInverse(t *testing.T) {
	s := newTestSession(t, 5)
	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 1, 2, 1)
	mustRecord(t, s, 3, 4, 4)

	before := captureState(s)

	mustRecord(t, s, 2, 3, 2)
	if !s.UndoLastChoice() {
		t.Fatal("undo failed")
	}

	after := captureState(s)
	if before.comparisons != after.comparisons {
		t.Errorf("comparisons: before=%d after=%d", before.comparisons, after.comparisons)
	}
	if len(before.frontier) != len(after.frontier) {
		t.Errorf("frontier size: before=%d after=%d", len(before.frontier), len(after.frontier))
	}
	for p := range before.frontier {
		if _, ok := after.frontier[p]; !ok {
			t.Errorf("pair %+v missing from frontier after undo", p)
		}
	}
	if len(before.edges) != len(after.edges) {
		t.Errorf("edge count: before=%d after=%d", len(before.edges), len(after.edges))
	}
	for e := range before.edges {
		if _, ok := after.edges[e]; !ok {
			t.Errorf("edge %+v missing after undo", e)
		}
	}
	checkInvariants(t, s)
}

func TestUndoReopensCompletedSession(t *testing.T) {
	s := newTestSession(t, 3)
	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 1, 2, 1)

	if !s.IsCompleted() {
		t.Fatal("session should be completed after full derivation")
	}
	if !s.UndoLastChoice() {
		t.Fatal("undo failed")
	}
	if s.IsCompleted() {
		t.Error("undo should reopen a session completed by frontier exhaustion")
	}
	if _, ok := s.CurrentPair(); !ok {
		t.Error("reopened session should offer a pair")
	}
	checkInvariants(t, s)
}

func TestUndoRestoresTransitivelyDerivedPairsToFrontier(t *testing.T) {
	s := newTestSession(t, 4)
	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 1, 2, 1) // derives (0,2)

	if _, ok := s.frontier[Pair{A: 0, B: 2}]; ok {
		t.Fatal("(0,2) should be derived and out of the frontier")
	}
	if !s.UndoLastChoice() {
		t.Fatal("undo failed")
	}
	if _, ok := s.frontier[Pair{A: 0, B: 2}]; !ok {
		t.Error("(0,2) should return to the frontier once its derivation is undone")
	}
	checkInvariants(t, s)
}

func TestBudgetTermination(t *testing.T) {
	const budget = 4
	s := newTestSession(t, 10, WithBudget(budget))

	for i := 0; i < budget; i++ {
		if s.IsCompleted() {
			t.Fatalf("session completed early after %d comparisons", i)
		}
		p, ok := s.CurrentPair()
		if !ok {
			t.Fatalf("no pair offered at comparison %d", i)
		}
		mustRecord(t, s, p.A, p.B, p.A)
	}
	if !s.IsCompleted() {
		t.Errorf("session not completed after %d comparisons with budget %d", budget, budget)
	}
	if _, ok := s.CurrentPair(); ok {
		t.Error("completed session must not offer a pair")
	}
}

func TestCurrentPairIsIdempotentPeek(t *testing.T) {
	s := newTestSession(t, 6)

	first, ok := s.CurrentPair()
	if !ok {
		t.Fatal("expected a pair")
	}
	for i := 0; i < 5; i++ {
		again, ok := s.CurrentPair()
		if !ok || again != first {
			t.Fatalf("CurrentPair changed between calls: %+v vs %+v", first, again)
		}
	}

	mustRecord(t, s, first.A, first.B, first.A)
	next, ok := s.CurrentPair()
	if !ok {
		t.Fatal("expected a pair after recording")
	}
	if next == first {
		// The same pair cannot be offered again: it now has a direct result.
		t.Fatalf("resolved pair %+v offered again", first)
	}
}

func TestPeekLastPair(t *testing.T) {
	s := newTestSession(t, 4)

	if _, ok := s.PeekLastPair(); ok {
		t.Error("peek on empty history should report false")
	}
	mustRecord(t, s, 2, 3, 2)
	p, ok := s.PeekLastPair()
	if !ok || p != (Pair{A: 2, B: 3}) {
		t.Errorf("peek = %+v, %v; want (2,3), true", p, ok)
	}
	// Peek must not mutate.
	if got := s.ComparisonsMade(); got != 1 {
		t.Errorf("comparisons made = %d, want 1", got)
	}
}

func TestFinalRankingOrder(t *testing.T) {
	s := newTestSession(t, 4)
	// 2 beats everyone, 0 beats 1 and 3, 1 beats 3.
	mustRecord(t, s, 2, 0, 2)
	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 1, 3, 1)

	got := s.FinalRanking()
	want := []int{2, 0, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", got, want)
		}
	}
}

func TestFinalRankingTieBreakByIndex(t *testing.T) {
	s := newTestSession(t, 4)
	// Two disjoint results: 1 beats 0, 3 beats 2. Items 1 and 3 tie on wins,
	// as do 0 and 2; ties resolve by ascending index.
	mustRecord(t, s, 0, 1, 1)
	mustRecord(t, s, 2, 3, 3)

	got := s.FinalRanking()
	want := []int{1, 3, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", got, want)
		}
	}
}

func TestRestrictedModeLimitsUniverse(t *testing.T) {
	s := newTestSession(t, 5, WithRestrictedIndices([]int{3, 4}))

	for p := range s.frontier {
		if p.A != 3 && p.A != 4 && p.B != 3 && p.B != 4 {
			t.Errorf("frontier pair %+v does not involve a restricted index", p)
		}
	}
	// Pairs among {3,4} and each restricted index against the rest:
	// (3,4) plus 3x{0,1,2} and 4x{0,1,2} = 7 pairs.
	if got := len(s.frontier); got != 7 {
		t.Errorf("restricted frontier size = %d, want 7", got)
	}
	checkInvariants(t, s)
}

func TestStatistics(t *testing.T) {
	s := newTestSession(t, 4, WithBudget(4))
	mustRecord(t, s, 0, 1, 0)
	mustRecord(t, s, 2, 3, 2)

	stats := s.Statistics()
	if stats.ComparisonsMade != 2 {
		t.Errorf("ComparisonsMade = %d, want 2", stats.ComparisonsMade)
	}
	if stats.TotalPairs != 4 {
		t.Errorf("TotalPairs = %d, want budget 4", stats.TotalPairs)
	}
	if stats.CompletionPercentage != 50.0 {
		t.Errorf("CompletionPercentage = %v, want 50", stats.CompletionPercentage)
	}
	if stats.TotalRelations != 2 {
		t.Errorf("TotalRelations = %d, want 2", stats.TotalRelations)
	}
}

func TestInvariantsUnderRandomPlay(t *testing.T) {
	// Drive a session to completion with deterministic pseudo-random winners,
	// checking all structural invariants after every step.
	rng := rand.New(rand.NewSource(7))
	s := NewSession(8, WithRand(rand.New(rand.NewSource(7))))

	steps := 0
	for !s.IsCompleted() {
		p, ok := s.CurrentPair()
		if !ok {
			t.Fatal("active session offered no pair")
		}
		winner := p.A
		if rng.Intn(2) == 1 {
			winner = p.B
		}
		mustRecord(t, s, p.A, p.B, winner)
		checkInvariants(t, s)
		steps++
		if steps > 100 {
			t.Fatal("session did not converge")
		}
	}
	if got := len(s.FinalRanking()); got != 8 {
		t.Errorf("final ranking covers %d items, want 8", got)
	}
}

// sessionState is a snapshot of the observable state used by undo tests.
type sessionState struct {
	comparisons int
	frontier    map[Pair]struct{}
	edges       map[[2]int]struct{}
}

func captureState(s *Session) sessionState {
	st := sessionState{
		comparisons: s.ComparisonsMade(),
		frontier:    make(map[Pair]struct{}, len(s.frontier)),
		edges:       make(map[[2]int]struct{}),
	}
	for p := range s.frontier {
		st.frontier[p] = struct{}{}
	}
	for a := 0; a < s.ItemCount(); a++ {
		for b := 0; b < s.ItemCount(); b++ {
			if a != b && s.Wins(a, b) {
				st.edges[[2]int{a, b}] = struct{}{}
			}
		}
	}
	return st
}
