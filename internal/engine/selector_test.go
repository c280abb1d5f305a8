package engine

import (
	"math/rand"
	"testing"
)

func TestSelectionIsDeterministicWithSeededRand(t *testing.T) {
	// Play whole sessions so both the bootstrap draws and the scored-sample
	// phase past the first ten comparisons are exercised.
	run := func() []Pair {
		s := NewSession(6, WithRand(rand.New(rand.NewSource(99))))
		var picks []Pair
		for {
			p, ok := s.CurrentPair()
			if !ok {
				return picks
			}
			picks = append(picks, p)
			if err := s.RecordChoice(p, p.A); err != nil {
				t.Fatal(err)
			}
		}
	}

	first := run()
	second := run()
	if len(first) != len(second) {
		t.Fatalf("identical seeds played %d and %d comparisons", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("pick %d differs between identical seeds: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSelectionOnlyOffersFrontierPairs(t *testing.T) {
	s := NewSession(7, WithRand(rand.New(rand.NewSource(3))))

	for !s.IsCompleted() {
		p, ok := s.CurrentPair()
		if !ok {
			t.Fatal("active session offered no pair")
		}
		if _, inFrontier := s.frontier[p]; !inFrontier {
			t.Fatalf("offered pair %+v is not in the frontier", p)
		}
		if err := s.RecordChoice(p, p.B); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFreshItemPromotion(t *testing.T) {
	// Exhaust the bootstrap phase using items 0..5 only, leaving item 6 fresh.
	// Once past bootstrap, selection must pair the newcomer next.
	s := NewSession(7, WithRand(rand.New(rand.NewSource(11))))

	pairs := []Pair{
		{0, 1}, {0, 2}, {0, 3}, {0, 4}, {0, 5},
		{1, 2}, {1, 3}, {1, 4}, {1, 5}, {2, 3},
	}
	for _, p := range pairs {
		if err := s.RecordChoice(p, p.A); err != nil {
			t.Fatalf("RecordChoice(%+v): %v", p, err)
		}
	}
	if s.ComparisonsMade() != bootstrapComparisons {
		t.Fatalf("comparisons made = %d, want %d", s.ComparisonsMade(), bootstrapComparisons)
	}

	p, ok := s.CurrentPair()
	if !ok {
		t.Fatal("expected a pair")
	}
	if p.A != 6 && p.B != 6 {
		t.Errorf("expected the never-compared item 6 to be promoted, got %+v", p)
	}
}

func TestNoFreshPromotionInRestrictedMode(t *testing.T) {
	s := NewSession(8, WithRestrictedIndices([]int{6, 7}), WithRand(rand.New(rand.NewSource(5))))

	if p, ok := s.promoteFreshItem(); ok {
		// The helper may find a pair, but selectNextPair must never call it
		// in restricted mode. Guard the policy directly.
		_ = p
	}
	for i := 0; i < 20 && !s.IsCompleted(); i++ {
		p, ok := s.selectNextPair()
		if !ok {
			break
		}
		if p.A != 6 && p.A != 7 && p.B != 6 && p.B != 7 {
			t.Fatalf("restricted selection offered out-of-universe pair %+v", p)
		}
		if err := s.RecordChoice(p, p.A); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScorePairTiers(t *testing.T) {
	s := NewSession(6, WithRand(rand.New(rand.NewSource(1))))

	// Give items 0 and 1 heavy exposure, 2 and 3 light exposure, leave 4 and 5
	// unseen. Comparing across tiers exercises every scoring branch.
	for _, c := range []struct {
		p Pair
		w int
	}{
		{Pair{0, 1}, 0},
		{Pair{0, 2}, 0},
		{Pair{1, 3}, 1},
	} {
		if err := s.RecordChoice(c.p, c.w); err != nil {
			t.Fatal(err)
		}
	}

	unseen := s.scorePair(Pair{A: 4, B: 5})
	light := s.scorePair(Pair{A: 2, B: 3})
	heavy := s.scorePair(Pair{A: 0, B: 1})

	if unseen < unseenPairBase-200 || unseen > unseenPairBase+100 {
		t.Errorf("unseen pair score %v outside its tier around %v", unseen, unseenPairBase)
	}
	if light < lightExposureBase-200 || light > lightExposureBase+100 {
		t.Errorf("lightly exposed pair score %v outside its tier around %v", light, lightExposureBase)
	}
	if heavy >= light || light >= unseen {
		t.Errorf("tier ordering violated: heavy=%v light=%v unseen=%v", heavy, light, unseen)
	}
}

func TestSampleFrontierBounds(t *testing.T) {
	s := NewSession(30, WithRand(rand.New(rand.NewSource(2))))

	sample := s.sampleFrontier(10)
	if len(sample) != 10 {
		t.Errorf("sample size = %d, want 10", len(sample))
	}
	for _, p := range sample {
		if _, ok := s.frontier[p]; !ok {
			t.Errorf("sampled pair %+v not in frontier", p)
		}
	}

	small := NewSession(3, WithRand(rand.New(rand.NewSource(2))))
	whole := small.sampleFrontier(10)
	if len(whole) != 3 {
		t.Errorf("small frontier sample = %d pairs, want all 3", len(whole))
	}
}

func TestSelectNextPairEmptyFrontier(t *testing.T) {
	s := NewSession(1, WithRand(rand.New(rand.NewSource(8))))
	if _, ok := s.selectNextPair(); ok {
		t.Error("single-item session has no pairs to offer")
	}
	if !s.IsCompleted() {
		t.Error("single-item session should start completed")
	}
}
