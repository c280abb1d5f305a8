package engine

import (
	"math"
	"sort"
)

// Pair selection tuning. Lower candidate scores mean higher priority.
const (
	// bootstrapComparisons is how many initial picks are uniform-random:
	// there is no signal worth exploiting yet.
	bootstrapComparisons = 10

	// freshPromotionMinComparisons gates the fresh-item promotion rule until
	// enough comparisons exist to identify mid-strength opponents.
	freshPromotionMinComparisons = 5

	// selectionSampleSize bounds the number of frontier pairs scored per
	// selection, keeping selection cheap on large frontiers.
	selectionSampleSize = 200

	// Scoring tiers: pairs where neither item has been compared are scored
	// far apart from pairs with light or moderate exposure.
	unseenPairBase     = 1000.0
	lightExposureBase  = 500.0
	lightExposureLimit = 3
)

// selectNextPair picks the frontier pair expected to yield the most
// information. Returns false only when the frontier is empty.
//
// Policy, in priority order: uniform-random bootstrap, promotion of
// never-compared items against mid-table opponents, then uncertainty-weighted
// scoring over a bounded random sample.
func (s *Session) selectNextPair() (Pair, bool) {
	if len(s.frontier) == 0 {
		return Pair{}, false
	}

	if s.comparisonsMade < bootstrapComparisons {
		return s.randomFrontierPair(), true
	}

	if !s.restricted && s.comparisonsMade >= freshPromotionMinComparisons {
		if p, ok := s.promoteFreshItem(); ok {
			return p, true
		}
	}

	candidates := s.sampleFrontier(selectionSampleSize)
	if len(candidates) == 0 {
		return s.randomFrontierPair(), true
	}

	type scored struct {
		score float64
		pair  Pair
	}
	ranked := make([]scored, 0, len(candidates))
	for _, p := range candidates {
		ranked = append(ranked, scored{score: s.scorePair(p), pair: p})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score < ranked[j].score
		}
		if ranked[i].pair.A != ranked[j].pair.A {
			return ranked[i].pair.A < ranked[j].pair.A
		}
		return ranked[i].pair.B < ranked[j].pair.B
	})

	// Pick randomly among the best third so identical histories do not
	// always replay the same question order.
	topCount := len(ranked) / 3
	if topCount < 1 {
		topCount = 1
	}
	return ranked[s.rng.Intn(topCount)].pair, true
}

// scorePair rates a candidate pair; lower is better. Unseen pairs score in
// their own tier, lightly exposed pairs in the next, and the rest favor
// similar-strength opponents with high learned uncertainty and moderate
// prior exposure.
func (s *Session) scorePair(p Pair) float64 {
	compSum := float64(s.compCounts[p.A] + s.compCounts[p.B])
	winDiff := math.Abs(float64(s.graph.WinCount(p.A) - s.graph.WinCount(p.B)))
	uncertainty := math.Abs(s.prefs.Preference(p.A, p.B) - NeutralPreference)

	switch {
	case compSum == 0:
		return unseenPairBase + winDiff - uncertainty*100
	case compSum < lightExposureLimit:
		return lightExposureBase + winDiff - uncertainty*50
	default:
		return winDiff - uncertainty*200 + math.Max(0, 5-math.Abs(compSum-6))
	}
}

// promoteFreshItem pairs a never-compared item against an opponent from the
// middle third of compared items ranked by win count. First matches against
// extreme opponents yield little information, so the extremes are avoided.
func (s *Session) promoteFreshItem() (Pair, bool) {
	var fresh []int
	for i := 0; i < s.itemCount; i++ {
		if s.compCounts[i] == 0 {
			fresh = append(fresh, i)
		}
	}
	if len(fresh) == 0 {
		return Pair{}, false
	}

	newcomer := fresh[s.rng.Intn(len(fresh))]

	var experienced []int
	for i := 0; i < s.itemCount; i++ {
		if i != newcomer && s.compCounts[i] > 0 {
			experienced = append(experienced, i)
		}
	}
	if len(experienced) == 0 {
		return Pair{}, false
	}

	sort.Slice(experienced, func(i, j int) bool {
		wi, wj := s.graph.WinCount(experienced[i]), s.graph.WinCount(experienced[j])
		if wi != wj {
			return wi < wj
		}
		return experienced[i] < experienced[j]
	})

	middle := experienced
	if len(experienced) >= 3 {
		start := len(experienced) / 3
		end := 2 * len(experienced) / 3
		if end > start {
			middle = experienced[start:end]
		}
	}

	opponent := middle[s.rng.Intn(len(middle))]
	p := canonicalPair(newcomer, opponent)
	if _, ok := s.frontier[p]; ok {
		return p, true
	}
	return Pair{}, false
}

// orderedFrontier returns the frontier pairs sorted by (A, B). Go randomizes
// map iteration order per run, so random draws must index a stable ordering
// or a seeded source still produces irreproducible picks.
func (s *Session) orderedFrontier() []Pair {
	all := make([]Pair, 0, len(s.frontier))
	for p := range s.frontier {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].A != all[j].A {
			return all[i].A < all[j].A
		}
		return all[i].B < all[j].B
	})
	return all
}

// randomFrontierPair returns a uniform-random pair from the frontier.
// The frontier must be non-empty.
func (s *Session) randomFrontierPair() Pair {
	all := s.orderedFrontier()
	return all[s.rng.Intn(len(all))]
}

// sampleFrontier draws up to k frontier pairs. Small frontiers are returned
// whole; larger ones are sampled with replacement, which is cheap and close
// enough to uniform for scoring purposes.
func (s *Session) sampleFrontier(k int) []Pair {
	if len(s.frontier) == 0 {
		return nil
	}
	all := s.orderedFrontier()
	if len(all) <= k {
		return all
	}
	sample := make([]Pair, k)
	for i := range sample {
		sample[i] = all[s.rng.Intn(len(all))]
	}
	return sample
}
