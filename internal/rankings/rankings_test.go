package rankings

import (
	"testing"

	"github.com/onnwee/charrank/internal/engine"
)

func TestBuildOrdersByTransitiveWins(t *testing.T) {
	names := []string{"Alice", "Bob", "Carol", "Dave"}
	sess := engine.NewSession(len(names))

	// Carol beats Alice, Alice beats Bob, Bob beats Dave.
	// Closure gives Carol 3 wins, Alice 2, Bob 1, Dave 0.
	for _, c := range []struct {
		p engine.Pair
		w int
	}{
		{engine.Pair{A: 0, B: 2}, 2},
		{engine.Pair{A: 0, B: 1}, 0},
		{engine.Pair{A: 1, B: 3}, 1},
	} {
		if err := sess.RecordChoice(c.p, c.w); err != nil {
			t.Fatal(err)
		}
	}

	entries := Build(sess, names)
	if len(entries) != 4 {
		t.Fatalf("Build produced %d entries, want 4", len(entries))
	}

	wantOrder := []string{"Carol", "Alice", "Bob", "Dave"}
	wantWins := []int{3, 2, 1, 0}
	for i, e := range entries {
		if e.Place != i+1 {
			t.Errorf("entry %d place = %d, want %d", i, e.Place, i+1)
		}
		if e.Name != wantOrder[i] {
			t.Errorf("entry %d name = %q, want %q", i, e.Name, wantOrder[i])
		}
		if e.Wins != wantWins[i] {
			t.Errorf("entry %d wins = %d, want %d", i, e.Wins, wantWins[i])
		}
	}

	// Direct wins count only recorded choices, not derived relations.
	if entries[0].DirectWins != 1 {
		t.Errorf("Carol direct wins = %d, want 1", entries[0].DirectWins)
	}
	if entries[1].Comparisons != 2 {
		t.Errorf("Alice comparisons = %d, want 2", entries[1].Comparisons)
	}
}

func TestBuildSkipsIndicesBeyondNames(t *testing.T) {
	// The session knows 4 items but the catalog only names 3 now.
	sess := engine.NewSession(4)
	entries := Build(sess, []string{"Alice", "Bob", "Carol"})

	if len(entries) != 3 {
		t.Fatalf("Build produced %d entries, want 3", len(entries))
	}
	for i, e := range entries {
		if e.Place != i+1 {
			t.Errorf("places must stay contiguous after a skip, got %d at %d", e.Place, i)
		}
	}
}

func TestNormalizeFull(t *testing.T) {
	catalog := []string{"Alice", "Bob", "Carol", "Dave"}

	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{
			name:  "partial ranking gets remainder appended",
			order: []string{"Carol", "Alice"},
			want:  []string{"Carol", "Alice", "Bob", "Dave"},
		},
		{
			name:  "unknown names dropped",
			order: []string{"Ghost", "Bob"},
			want:  []string{"Bob", "Alice", "Carol", "Dave"},
		},
		{
			name:  "duplicates collapsed",
			order: []string{"Bob", "Bob", "Alice"},
			want:  []string{"Bob", "Alice", "Carol", "Dave"},
		},
		{
			name:  "empty ranking becomes catalog order",
			order: nil,
			want:  []string{"Alice", "Bob", "Carol", "Dave"},
		},
		{
			name:  "complete ranking unchanged",
			order: []string{"Dave", "Carol", "Bob", "Alice"},
			want:  []string{"Dave", "Carol", "Bob", "Alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFull(tt.order, catalog)
			if len(got) != len(tt.want) {
				t.Fatalf("NormalizeFull = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("NormalizeFull = %v, want %v", got, tt.want)
				}
			}
		})
	}
}
