// Package rankings builds the read model over finished (or in-progress)
// ranking sessions: per-user ordered character lists and the aggregated
// global top. The comparison engine only orders item indices; everything
// name-shaped lives here.
package rankings

import (
	"github.com/onnwee/charrank/internal/engine"
)

// Entry is one row of a user's ranking.
type Entry struct {
	Place       int    `json:"place"`
	Name        string `json:"name"`
	Wins        int    `json:"wins"`
	DirectWins  int    `json:"direct_wins"`
	Comparisons int    `json:"comparisons"`
}

// Build produces the full ranking for a session, pairing each item index with
// its catalog name. names must be in catalog index order; indices beyond the
// name list are skipped (the catalog shrank since the session started).
func Build(sess *engine.Session, names []string) []Entry {
	snap := sess.Snapshot()
	directWins := make(map[int]int)
	comparisons := make(map[int]int)
	for _, c := range snap.Choices {
		comparisons[c.A]++
		comparisons[c.B]++
		directWins[c.Winner]++
	}

	order := sess.FinalRanking()
	entries := make([]Entry, 0, len(order))
	place := 1
	for _, idx := range order {
		if idx < 0 || idx >= len(names) {
			continue
		}
		entries = append(entries, Entry{
			Place:       place,
			Name:        names[idx],
			Wins:        sess.WinCount(idx),
			DirectWins:  directWins[idx],
			Comparisons: comparisons[idx],
		})
		place++
	}
	return entries
}

// Names extracts just the ordered character names from a built ranking.
func Names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

// NormalizeFull guarantees a stored ranking covers every catalog character
// exactly once: names no longer in the catalog are dropped, and characters
// missing from the ranking are appended in catalog order. Partial rankings
// from short sessions thus still produce a total order.
func NormalizeFull(order []string, catalogNames []string) []string {
	known := make(map[string]struct{}, len(catalogNames))
	for _, n := range catalogNames {
		known[n] = struct{}{}
	}

	seen := make(map[string]struct{}, len(order))
	valid := make([]string, 0, len(catalogNames))
	for _, n := range order {
		if _, ok := known[n]; !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		valid = append(valid, n)
	}

	for _, n := range catalogNames {
		if _, ok := seen[n]; !ok {
			valid = append(valid, n)
		}
	}
	return valid
}
