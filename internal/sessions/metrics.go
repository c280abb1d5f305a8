package sessions

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricSessionsStarted   = "charrank_sessions_started_total"
	MetricChoicesRecorded   = "charrank_choices_recorded_total"
	MetricConflictsAbsorbed = "charrank_conflicts_absorbed_total"
	MetricUndosPerformed    = "charrank_undos_total"
	MetricSnapshotsSaved    = "charrank_snapshots_saved_total"
	MetricSnapshotSaveErrs  = "charrank_snapshot_save_errors_total"
)

// Metrics contains Prometheus metrics for the session registry.
// All operations are thread-safe.
type Metrics struct {
	sessionsStarted   prometheus.Counter
	choicesRecorded   prometheus.Counter
	conflictsAbsorbed prometheus.Counter
	undosPerformed    prometheus.Counter
	snapshotsSaved    prometheus.Counter
	snapshotSaveErrs  prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them.
func NewMetrics() *Metrics {
	return &Metrics{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSessionsStarted,
			Help: "Total number of ranking sessions started",
		}),
		choicesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricChoicesRecorded,
			Help: "Total number of pairwise choices recorded",
		}),
		conflictsAbsorbed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricConflictsAbsorbed,
			Help: "Total number of choices absorbed because they contradicted derived relations",
		}),
		undosPerformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricUndosPerformed,
			Help: "Total number of undo operations",
		}),
		snapshotsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSnapshotsSaved,
			Help: "Total number of session snapshots written to the store",
		}),
		snapshotSaveErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSnapshotSaveErrs,
			Help: "Total number of failed snapshot writes",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.sessionsStarted,
		m.choicesRecorded,
		m.conflictsAbsorbed,
		m.undosPerformed,
		m.snapshotsSaved,
		m.snapshotSaveErrs,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) incSessionsStarted() {
	if m != nil {
		m.sessionsStarted.Inc()
	}
}

func (m *Metrics) incChoicesRecorded() {
	if m != nil {
		m.choicesRecorded.Inc()
	}
}

func (m *Metrics) incConflictsAbsorbed() {
	if m != nil {
		m.conflictsAbsorbed.Inc()
	}
}

func (m *Metrics) incUndosPerformed() {
	if m != nil {
		m.undosPerformed.Inc()
	}
}

func (m *Metrics) incSnapshotsSaved() {
	if m != nil {
		m.snapshotsSaved.Inc()
	}
}

func (m *Metrics) incSnapshotSaveErrs() {
	if m != nil {
		m.snapshotSaveErrs.Inc()
	}
}
