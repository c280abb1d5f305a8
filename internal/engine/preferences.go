package engine

// Learned-preference model constants.
const (
	// NeutralPreference is the prior for every ordered pair.
	NeutralPreference = 0.5

	// learningRate is the fixed nudge applied toward an observed winner.
	learningRate = 0.1
)

// prefKey is an ordered pair of item indices.
type prefKey struct {
	a, b int
}

// PreferenceModel maintains a soft score in [0, 1] per ordered pair of items,
// nudged toward observed winners. It is advisory only: pair selection uses it
// to estimate uncertainty, and it never participates in the relation graph.
//
// All methods are total: out-of-range indices and self pairs degrade to the
// neutral value instead of failing.
type PreferenceModel struct {
	itemCount int
	table     map[prefKey]float64
}

// NewPreferenceModel creates an empty model over itemCount items.
func NewPreferenceModel(itemCount int) *PreferenceModel {
	return &PreferenceModel{
		itemCount: itemCount,
		table:     make(map[prefKey]float64),
	}
}

// Preference returns the learned preference of a over b. Unseen pairs,
// out-of-range indices, and self pairs return NeutralPreference.
func (m *PreferenceModel) Preference(a, b int) float64 {
	if a < 0 || a >= m.itemCount || b < 0 || b >= m.itemCount || a == b {
		return NeutralPreference
	}
	if v, ok := m.table[prefKey{a, b}]; ok {
		return v
	}
	return NeutralPreference
}

// Learn nudges the ordered-pair scores toward the observed winner: the
// winner's score over the loser goes up by the learning rate, the reverse
// score goes down, both clamped to [0, 1]. Invalid input is ignored.
func (m *PreferenceModel) Learn(pair Pair, winner int) {
	a, b := pair.A, pair.B
	if a < 0 || a >= m.itemCount || b < 0 || b >= m.itemCount || a == b {
		return
	}
	if winner != a && winner != b {
		return
	}

	loser := a
	if winner == a {
		loser = b
	}

	won := prefKey{winner, loser}
	lost := prefKey{loser, winner}
	m.table[won] = clamp01(m.valueOr(won) + learningRate)
	m.table[lost] = clamp01(m.valueOr(lost) - learningRate)
}

func (m *PreferenceModel) valueOr(k prefKey) float64 {
	if v, ok := m.table[k]; ok {
		return v
	}
	return NeutralPreference
}

// set stores a raw value, used when restoring a snapshot. Entries outside the
// item range or outside [0, 1] are discarded.
func (m *PreferenceModel) set(a, b int, v float64) {
	if a < 0 || a >= m.itemCount || b < 0 || b >= m.itemCount || a == b {
		return
	}
	if v < 0 || v > 1 {
		return
	}
	m.table[prefKey{a, b}] = v
}

// entries returns all stored ordered-pair values, used when snapshotting.
func (m *PreferenceModel) entries() []PreferenceRecord {
	out := make([]PreferenceRecord, 0, len(m.table))
	for k, v := range m.table {
		out = append(out, PreferenceRecord{A: k.a, B: k.b, Value: v})
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
