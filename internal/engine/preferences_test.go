package engine

import (
	"math"
	"testing"
)

func TestPreferenceDefaultsToNeutral(t *testing.T) {
	m := NewPreferenceModel(4)

	tests := []struct {
		name string
		a, b int
	}{
		{"unseen pair", 0, 1},
		{"self pair", 2, 2},
		{"negative index", -1, 0},
		{"index beyond range", 0, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := m.Preference(tt.a, tt.b); got != NeutralPreference {
				t.Errorf("Preference(%d, %d) = %v, want %v", tt.a, tt.b, got, NeutralPreference)
			}
		})
	}
}

func TestLearnNudgesBothDirections(t *testing.T) {
	m := NewPreferenceModel(3)
	m.Learn(Pair{A: 0, B: 1}, 0)

	if got := m.Preference(0, 1); math.Abs(got-0.6) > 1e-9 {
		t.Errorf("Preference(0, 1) = %v, want 0.6", got)
	}
	if got := m.Preference(1, 0); math.Abs(got-0.4) > 1e-9 {
		t.Errorf("Preference(1, 0) = %v, want 0.4", got)
	}
	// Unrelated pairs stay neutral.
	if got := m.Preference(0, 2); got != NeutralPreference {
		t.Errorf("Preference(0, 2) = %v, want neutral", got)
	}
}

func TestLearnClampsAtBounds(t *testing.T) {
	m := NewPreferenceModel(2)
	for i := 0; i < 10; i++ {
		m.Learn(Pair{A: 0, B: 1}, 0)
	}
	if got := m.Preference(0, 1); got != 1.0 {
		t.Errorf("Preference(0, 1) after 10 wins = %v, want clamp at 1", got)
	}
	if got := m.Preference(1, 0); got != 0.0 {
		t.Errorf("Preference(1, 0) after 10 losses = %v, want clamp at 0", got)
	}
}

func TestLearnIgnoresInvalidInput(t *testing.T) {
	m := NewPreferenceModel(3)
	m.Learn(Pair{A: 0, B: 9}, 0)  // out of range
	m.Learn(Pair{A: 1, B: 1}, 1)  // self pair
	m.Learn(Pair{A: 0, B: 1}, 2)  // winner not in pair
	m.Learn(Pair{A: -1, B: 0}, 0) // negative index

	if len(m.table) != 0 {
		t.Errorf("invalid learn calls populated %d entries, want 0", len(m.table))
	}
}

func TestSetRejectsOutOfDomainValues(t *testing.T) {
	m := NewPreferenceModel(3)
	m.set(0, 1, 0.75)
	m.set(0, 1, 1.5)  // outside [0, 1], keep the previous value
	m.set(0, 9, 0.5)  // out of range
	m.set(1, 1, 0.5)  // self pair
	m.set(2, 0, -0.1) // negative value

	if got := m.Preference(0, 1); got != 0.75 {
		t.Errorf("Preference(0, 1) = %v, want 0.75", got)
	}
	if got := m.Preference(2, 0); got != NeutralPreference {
		t.Errorf("Preference(2, 0) = %v, want neutral", got)
	}
	if len(m.table) != 1 {
		t.Errorf("table has %d entries, want 1", len(m.table))
	}
}

func TestEntriesRoundTrip(t *testing.T) {
	m := NewPreferenceModel(4)
	m.Learn(Pair{A: 0, B: 1}, 0)
	m.Learn(Pair{A: 2, B: 3}, 3)

	restored := NewPreferenceModel(4)
	for _, e := range m.entries() {
		restored.set(e.A, e.B, e.Value)
	}

	for a := 0; a < 4; a++ {
		for b := 0; b < 4; b++ {
			if got, want := restored.Preference(a, b), m.Preference(a, b); got != want {
				t.Errorf("Preference(%d, %d) = %v after round trip, want %v", a, b, got, want)
			}
		}
	}
}
