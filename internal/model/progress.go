package model

import (
	"fmt"
	"math"
)

// TotalStatus describes how much to trust a metric's total_units.
type TotalStatus string

const (
	TotalUnknown     TotalStatus = "unknown"
	TotalDiscovering TotalStatus = "discovering"
	TotalEstimated   TotalStatus = "estimated"
	TotalLocked      TotalStatus = "locked"
)

// Valid reports whether s is a known total status.
func (s TotalStatus) Valid() bool {
	switch s {
	case TotalUnknown, TotalDiscovering, TotalEstimated, TotalLocked:
		return true
	}
	return false
}

// PercentMode describes how much to trust a percentage.
type PercentMode string

const (
	PercentUnavailable PercentMode = "unavailable"
	PercentLowerBound  PercentMode = "lower_bound"
	PercentEstimated   PercentMode = "estimated"
	PercentFinal       PercentMode = "final"
)

// PercentModeRank orders modes from least (0) to most confident. Unknown
// modes rank below unavailable so they never win a confidence merge.
func PercentModeRank(m PercentMode) int {
	switch m {
	case PercentUnavailable:
		return 1
	case PercentLowerBound:
		return 2
	case PercentEstimated:
		return 3
	case PercentFinal:
		return 4
	default:
		return 0
	}
}

// Valid reports whether m is a known percent mode.
func (m PercentMode) Valid() bool {
	return PercentModeRank(m) > 0
}

// ConfidenceBearing reports whether m is trustworthy enough to
// participate in monotonicity checks. Estimated values may legitimately
// move backward as better information arrives.
func (m PercentMode) ConfidenceBearing() bool {
	return m == PercentFinal || m == PercentLowerBound
}

// ProgressMetric is one measured quantity for a phase, e.g. lines
// translated. Percentages are on the 0-100 scale.
type ProgressMetric struct {
	MetricKey       string      `json:"metric_key"`
	Unit            string      `json:"unit"`
	CompletedUnits  int64       `json:"completed_units"`
	TotalUnits      *int64      `json:"total_units,omitempty"`
	TotalStatus     TotalStatus `json:"total_status"`
	PercentComplete *float64    `json:"percent_complete,omitempty"`
	PercentMode     PercentMode `json:"percent_mode"`
	ETASeconds      *float64    `json:"eta_seconds,omitempty"`
}

// Validate checks the metric's internal consistency.
func (m ProgressMetric) Validate() error {
	if m.MetricKey == "" {
		return fmt.Errorf("metric_key is required")
	}
	if !m.TotalStatus.Valid() {
		return fmt.Errorf("metric %s: unknown total_status %q", m.MetricKey, m.TotalStatus)
	}
	if !m.PercentMode.Valid() {
		return fmt.Errorf("metric %s: unknown percent_mode %q", m.MetricKey, m.PercentMode)
	}
	if m.CompletedUnits < 0 {
		return fmt.Errorf("metric %s: completed_units must not be negative", m.MetricKey)
	}
	hasTotal := m.TotalUnits != nil
	wantTotal := m.TotalStatus == TotalEstimated || m.TotalStatus == TotalLocked
	if hasTotal != wantTotal {
		return fmt.Errorf("metric %s: total_units must be set iff total_status is estimated or locked (status %s)",
			m.MetricKey, m.TotalStatus)
	}
	hasPercent := m.PercentComplete != nil
	if hasPercent == (m.PercentMode == PercentUnavailable) {
		return fmt.Errorf("metric %s: percent_complete must be set iff percent_mode is not unavailable (mode %s)",
			m.MetricKey, m.PercentMode)
	}
	if hasPercent && (*m.PercentComplete < 0 || *m.PercentComplete > 100) {
		return fmt.Errorf("metric %s: percent_complete %v out of range", m.MetricKey, *m.PercentComplete)
	}
	if hasTotal && m.CompletedUnits > *m.TotalUnits {
		return fmt.Errorf("metric %s: completed_units %d exceeds total_units %d",
			m.MetricKey, m.CompletedUnits, *m.TotalUnits)
	}
	if m.PercentMode == PercentFinal && m.TotalStatus != TotalLocked {
		return fmt.Errorf("metric %s: percent_mode final requires total_status locked (status %s)",
			m.MetricKey, m.TotalStatus)
	}
	return nil
}

// ProgressSummary is the derived rollup for a phase or a whole run.
// PercentComplete and ETASeconds are absent when no trustworthy value
// can be computed.
type ProgressSummary struct {
	PercentComplete *float64    `json:"percent_complete,omitempty"`
	PercentMode     PercentMode `json:"percent_mode"`
	ETASeconds      *float64    `json:"eta_seconds,omitempty"`
}

// PhaseStatus is the execution state of one phase within a run.
type PhaseStatus string

const (
	PhasePending          PhaseStatus = "pending"
	PhaseRunning          PhaseStatus = "running"
	PhaseAwaitingApproval PhaseStatus = "awaiting_approval"
	PhaseCompleted        PhaseStatus = "completed"
	PhaseFailed           PhaseStatus = "failed"
	PhaseSkipped          PhaseStatus = "skipped"
)

// allowedMetrics fixes, per phase, the metric keys that may be reported
// and the unit each key must carry.
var allowedMetrics = map[Phase]map[string]string{
	PhaseIngest:         {"files_parsed": "files", "lines_ingested": "lines"},
	PhaseContext:        {"scenes_annotated": "scenes", "speakers_profiled": "speakers"},
	PhasePretranslation: {"lines_matched": "lines", "tm_hits": "segments"},
	PhaseTranslate:      {"lines_translated": "lines", "scenes_completed": "scenes"},
	PhaseQA:             {"lines_checked": "lines", "issues_flagged": "issues"},
	PhaseEdit:           {"lines_edited": "lines", "issues_resolved": "issues"},
	PhaseExport:         {"files_written": "files", "lines_exported": "lines"},
}

// AllowedMetric reports whether the given key/unit pair may be reported
// for phase p.
func AllowedMetric(p Phase, key, unit string) bool {
	unitFor, ok := allowedMetrics[p]
	if !ok {
		return false
	}
	want, ok := unitFor[key]
	return ok && want == unit
}

// PhaseProgress tracks one phase's progress within a run. Metrics are
// restricted to the phase's allowed set; Summary is derived, never
// reported directly.
type PhaseProgress struct {
	Phase   Phase            `json:"phase"`
	Status  PhaseStatus      `json:"status"`
	Summary ProgressSummary  `json:"summary"`
	Metrics []ProgressMetric `json:"metrics,omitempty"`
}

// Validate checks the phase's metrics against their invariants and the
// per-phase whitelist.
func (p PhaseProgress) Validate() error {
	if !p.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", p.Phase)
	}
	seen := make(map[string]bool, len(p.Metrics))
	for _, m := range p.Metrics {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("phase %s: %w", p.Phase, err)
		}
		if seen[m.MetricKey] {
			return fmt.Errorf("phase %s: duplicate metric %s", p.Phase, m.MetricKey)
		}
		seen[m.MetricKey] = true
		if !AllowedMetric(p.Phase, m.MetricKey, m.Unit) {
			return fmt.Errorf("phase %s: metric %s (%s) is not in the allowed set", p.Phase, m.MetricKey, m.Unit)
		}
	}
	return nil
}

// weightTolerance bounds how far phase weights may drift from 1.0.
const weightTolerance = 0.01

// RunProgress is the progress snapshot for a whole run: an ordered list
// of unique per-phase entries plus the derived run summary. Snapshots
// replace one another; they are never mutated in place.
type RunProgress struct {
	Phases       []PhaseProgress   `json:"phases"`
	Summary      ProgressSummary   `json:"summary"`
	PhaseWeights map[Phase]float64 `json:"phase_weights,omitempty"`
}

// PhaseFor returns the progress entry for phase p, or nil when the run
// does not track it.
func (r *RunProgress) PhaseFor(p Phase) *PhaseProgress {
	for i := range r.Phases {
		if r.Phases[i].Phase == p {
			return &r.Phases[i]
		}
	}
	return nil
}

// Validate checks phase uniqueness and ordering, per-phase metric
// invariants, and phase-weight coverage.
func (r RunProgress) Validate() error {
	lastRank := -1
	seen := make(map[Phase]bool, len(r.Phases))
	for _, pp := range r.Phases {
		if err := pp.Validate(); err != nil {
			return err
		}
		if seen[pp.Phase] {
			return fmt.Errorf("duplicate phase %s in run progress", pp.Phase)
		}
		seen[pp.Phase] = true
		rank := PhaseRank(pp.Phase)
		if rank < lastRank {
			return fmt.Errorf("phase %s out of canonical order in run progress", pp.Phase)
		}
		lastRank = rank
	}
	if r.PhaseWeights == nil {
		return nil
	}
	sum := 0.0
	for p, w := range r.PhaseWeights {
		if !seen[p] {
			return fmt.Errorf("phase_weights names untracked phase %s", p)
		}
		if w < 0 {
			return fmt.Errorf("phase_weights: weight for %s must not be negative", p)
		}
		sum += w
	}
	for p := range seen {
		if _, ok := r.PhaseWeights[p]; !ok {
			return fmt.Errorf("phase_weights missing tracked phase %s", p)
		}
	}
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("phase_weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}
