// Package progress derives phase and run rollups from raw metrics and
// guards successive run snapshots against regressions.
//
// Aggregation never overstates confidence: a phase is only as done as
// its slowest metric, only as certain as its least certain one, and
// only as near as its most distant ETA.
package progress

import (
	"math"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// ComputePhaseSummary derives the rollup for one phase's metrics. The
// percent is the minimum across metrics and is absent when any metric
// lacks one; the mode is the least confident among metrics; the ETA is
// the maximum of metric ETAs, present only when every metric has one.
func ComputePhaseSummary(metrics []model.ProgressMetric) model.ProgressSummary {
	if len(metrics) == 0 {
		return model.ProgressSummary{PercentMode: model.PercentUnavailable}
	}

	leastMode := model.PercentFinal
	minPercent := math.Inf(1)
	available := true
	maxETA := math.Inf(-1)
	allETAs := true

	for _, m := range metrics {
		mode := m.PercentMode
		if m.PercentComplete == nil {
			mode = model.PercentUnavailable
			available = false
		} else if *m.PercentComplete < minPercent {
			minPercent = *m.PercentComplete
		}
		if model.PercentModeRank(mode) < model.PercentModeRank(leastMode) {
			leastMode = mode
		}
		if m.ETASeconds == nil {
			allETAs = false
		} else if *m.ETASeconds > maxETA {
			maxETA = *m.ETASeconds
		}
	}

	summary := model.ProgressSummary{PercentMode: leastMode}
	if available {
		summary.PercentComplete = &minPercent
	}
	if allETAs {
		summary.ETASeconds = &maxETA
	}
	return summary
}

// ComputeRunSummary derives the run rollup from the per-phase
// summaries. The percent is the weighted average across phases (equal
// weights when PhaseWeights is unset) and is absent when any phase
// lacks one; the mode is the least confident across phases; the ETA is
// the sum of phase ETAs, present only when every phase has one.
func ComputeRunSummary(run *model.RunProgress) model.ProgressSummary {
	if len(run.Phases) == 0 {
		return model.ProgressSummary{PercentMode: model.PercentUnavailable}
	}

	leastMode := model.PercentFinal
	weighted := 0.0
	weightSum := 0.0
	available := true
	etaSum := 0.0
	allETAs := true

	for i := range run.Phases {
		pp := &run.Phases[i]
		s := pp.Summary

		mode := s.PercentMode
		if s.PercentComplete == nil {
			mode = model.PercentUnavailable
			available = false
		} else {
			w := weightFor(run, pp.Phase)
			weighted += w * *s.PercentComplete
			weightSum += w
		}
		if model.PercentModeRank(mode) < model.PercentModeRank(leastMode) {
			leastMode = mode
		}
		if s.ETASeconds == nil {
			allETAs = false
		} else {
			etaSum += *s.ETASeconds
		}
	}

	summary := model.ProgressSummary{PercentMode: leastMode}
	if available && weightSum > 0 {
		pct := weighted / weightSum
		summary.PercentComplete = &pct
	}
	if allETAs {
		summary.ETASeconds = &etaSum
	}
	return summary
}

// Recompute rederives every phase summary and the run summary in
// place.
func Recompute(run *model.RunProgress) {
	for i := range run.Phases {
		run.Phases[i].Summary = ComputePhaseSummary(run.Phases[i].Metrics)
	}
	run.Summary = ComputeRunSummary(run)
}

func weightFor(run *model.RunProgress, p model.Phase) float64 {
	if len(run.PhaseWeights) == 0 {
		return 1
	}
	return run.PhaseWeights[p]
}
