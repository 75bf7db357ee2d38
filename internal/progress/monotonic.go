package progress

import "github.com/trevorWieland/rentl-sub001/internal/model"

// ValidateMonotonic checks that no confidence-bearing quantity moved
// backward between two successive run snapshots. It compares every
// phase and metric key present in both, at metric level and at phase
// summary level, and returns the first regression found as a
// *model.MonotonicityViolation.
//
// A quantity participates only when both snapshots report it with a
// final or lower_bound mode. Transitions through estimated may move
// backward as better information arrives, and never raise.
func ValidateMonotonic(prev, next *model.RunProgress) error {
	if prev == nil || next == nil {
		return nil
	}
	for i := range prev.Phases {
		pp := &prev.Phases[i]
		np := next.PhaseFor(pp.Phase)
		if np == nil {
			continue
		}
		if v := phaseMonotonic(pp, np); v != nil {
			return v
		}
	}
	return nil
}

func phaseMonotonic(prev, next *model.PhaseProgress) *model.MonotonicityViolation {
	for i := range prev.Metrics {
		pm := &prev.Metrics[i]
		nm := metricFor(next, pm.MetricKey)
		if nm == nil {
			continue
		}
		if !pm.PercentMode.ConfidenceBearing() || !nm.PercentMode.ConfidenceBearing() {
			continue
		}
		if pm.PercentComplete != nil && nm.PercentComplete != nil && *nm.PercentComplete < *pm.PercentComplete {
			return &model.MonotonicityViolation{
				Phase:     prev.Phase,
				MetricKey: pm.MetricKey,
				Quantity:  "percent_complete",
				Prev:      *pm.PercentComplete,
				Next:      *nm.PercentComplete,
			}
		}
		if nm.CompletedUnits < pm.CompletedUnits {
			return &model.MonotonicityViolation{
				Phase:     prev.Phase,
				MetricKey: pm.MetricKey,
				Quantity:  "completed_units",
				Prev:      float64(pm.CompletedUnits),
				Next:      float64(nm.CompletedUnits),
			}
		}
	}

	ps, ns := prev.Summary, next.Summary
	if ps.PercentMode.ConfidenceBearing() && ns.PercentMode.ConfidenceBearing() &&
		ps.PercentComplete != nil && ns.PercentComplete != nil &&
		*ns.PercentComplete < *ps.PercentComplete {
		return &model.MonotonicityViolation{
			Phase:    prev.Phase,
			Quantity: "percent_complete",
			Prev:     *ps.PercentComplete,
			Next:     *ns.PercentComplete,
		}
	}
	return nil
}

func metricFor(p *model.PhaseProgress, key string) *model.ProgressMetric {
	for i := range p.Metrics {
		if p.Metrics[i].MetricKey == key {
			return &p.Metrics[i]
		}
	}
	return nil
}
