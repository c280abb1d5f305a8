package engine

// ChoiceRecord is one recorded comparison in insertion order.
type ChoiceRecord struct {
	A      int `json:"a" cbor:"a"`
	B      int `json:"b" cbor:"b"`
	Winner int `json:"winner" cbor:"winner"`
}

// PreferenceRecord is one learned-preference table entry for an ordered pair.
type PreferenceRecord struct {
	A     int     `json:"a" cbor:"a"`
	B     int     `json:"b" cbor:"b"`
	Value float64 `json:"value" cbor:"value"`
}

// Snapshot is the complete serializable state of a Session. It intentionally
// carries only primary data: direct results in insertion order, the choice
// history's winners, and the learned-preference table. The derived relation
// graph and the frontier are never serialized; Restore rebuilds them by
// replaying the choices, which keeps the closure invariant out of the hands
// of whatever stored the snapshot.
type Snapshot struct {
	ItemCount         int                `json:"item_count" cbor:"item_count"`
	Budget            int                `json:"budget,omitempty" cbor:"budget,omitempty"`
	Restricted        bool               `json:"restricted,omitempty" cbor:"restricted,omitempty"`
	RestrictedIndices []int              `json:"restricted_indices,omitempty" cbor:"restricted_indices,omitempty"`
	Choices           []ChoiceRecord     `json:"choices" cbor:"choices"`
	Preferences       []PreferenceRecord `json:"preferences,omitempty" cbor:"preferences,omitempty"`
}

// Snapshot captures the session's primary state.
func (s *Session) Snapshot() *Snapshot {
	snap := &Snapshot{
		ItemCount:   s.itemCount,
		Budget:      s.budget,
		Restricted:  s.restricted,
		Choices:     make([]ChoiceRecord, 0, len(s.history)),
		Preferences: s.prefs.entries(),
	}
	if s.restricted {
		snap.RestrictedIndices = make([]int, 0, len(s.restrictedSet))
		for i := range s.restrictedSet {
			snap.RestrictedIndices = append(snap.RestrictedIndices, i)
		}
	}
	for _, c := range s.history {
		snap.Choices = append(snap.Choices, ChoiceRecord{A: c.pair.A, B: c.pair.B, Winner: c.winner})
	}
	return snap
}

// Restore reconstructs a session from a snapshot. Every recorded choice is
// replayed through the normal accept-or-conflict path, so the derived graph
// is guaranteed to be a transitively closed DAG regardless of what produced
// the snapshot. Invalid choice records are skipped. The learned-preference
// table is then restored verbatim, since replay nudges would otherwise
// compound on top of the saved values.
func Restore(snap *Snapshot, opts ...Option) *Session {
	base := []Option{}
	if snap.Budget > 0 {
		base = append(base, WithBudget(snap.Budget))
	}
	if snap.Restricted && len(snap.RestrictedIndices) > 0 {
		base = append(base, WithRestrictedIndices(snap.RestrictedIndices))
	}
	base = append(base, opts...)

	s := NewSession(snap.ItemCount, base...)
	for _, c := range snap.Choices {
		// Errors mean a malformed record; drop it rather than poison the rest.
		_ = s.RecordChoice(Pair{A: c.A, B: c.B}, c.Winner)
	}

	s.prefs = NewPreferenceModel(snap.ItemCount)
	for _, p := range snap.Preferences {
		s.prefs.set(p.A, p.B, p.Value)
	}
	return s
}
