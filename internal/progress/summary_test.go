package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/progress"
)

func fptr(v float64) *float64 { return &v }

// finalMetric builds a locked-total metric with a final percentage.
func finalMetric(key, unit string, completed, total int64) model.ProgressMetric {
	pct := float64(completed) / float64(total) * 100
	return model.ProgressMetric{
		MetricKey:       key,
		Unit:            unit,
		CompletedUnits:  completed,
		TotalUnits:      &total,
		TotalStatus:     model.TotalLocked,
		PercentComplete: &pct,
		PercentMode:     model.PercentFinal,
	}
}

func summaryOf(pct float64, mode model.PercentMode, eta *float64) model.ProgressSummary {
	return model.ProgressSummary{PercentComplete: &pct, PercentMode: mode, ETASeconds: eta}
}

func TestComputePhaseSummaryEmpty(t *testing.T) {
	s := progress.ComputePhaseSummary(nil)
	assert.Equal(t, model.PercentUnavailable, s.PercentMode)
	assert.Nil(t, s.PercentComplete)
	assert.Nil(t, s.ETASeconds)
}

func TestComputePhaseSummarySlowestMetricGates(t *testing.T) {
	fast := finalMetric("lines_translated", "lines", 8, 10)
	slow := finalMetric("scenes_completed", "scenes", 1, 5)
	slow.PercentMode = model.PercentEstimated
	slow.TotalStatus = model.TotalEstimated

	s := progress.ComputePhaseSummary([]model.ProgressMetric{fast, slow})
	require.NotNil(t, s.PercentComplete)
	assert.InDelta(t, 20.0, *s.PercentComplete, 0.001, "the slowest metric gates the phase")
	assert.Equal(t, model.PercentEstimated, s.PercentMode, "the least confident mode wins")
}

func TestComputePhaseSummaryUnavailableMetricGates(t *testing.T) {
	done := finalMetric("lines_translated", "lines", 9, 10)
	unknown := model.ProgressMetric{
		MetricKey:      "scenes_completed",
		Unit:           "scenes",
		CompletedUnits: 3,
		TotalStatus:    model.TotalDiscovering,
		PercentMode:    model.PercentUnavailable,
	}

	s := progress.ComputePhaseSummary([]model.ProgressMetric{done, unknown})
	assert.Equal(t, model.PercentUnavailable, s.PercentMode)
	assert.Nil(t, s.PercentComplete)
}

func TestComputePhaseSummaryETA(t *testing.T) {
	a := finalMetric("lines_translated", "lines", 5, 10)
	a.ETASeconds = fptr(120)
	b := finalMetric("scenes_completed", "scenes", 2, 5)
	b.ETASeconds = fptr(300)

	s := progress.ComputePhaseSummary([]model.ProgressMetric{a, b})
	require.NotNil(t, s.ETASeconds)
	assert.InDelta(t, 300.0, *s.ETASeconds, 0.001, "the most distant ETA wins")

	b.ETASeconds = nil
	s = progress.ComputePhaseSummary([]model.ProgressMetric{a, b})
	assert.Nil(t, s.ETASeconds, "ETA is absent unless every metric has one")
	assert.NotNil(t, s.PercentComplete)
}

func TestComputePhaseSummaryMonotone(t *testing.T) {
	// Raising one metric's percent, with everything locked and final,
	// must never lower the phase percent.
	prev := -1.0
	for completed := int64(0); completed <= 10; completed++ {
		moving := finalMetric("lines_translated", "lines", completed, 10)
		fixed := finalMetric("scenes_completed", "scenes", 3, 5)

		s := progress.ComputePhaseSummary([]model.ProgressMetric{moving, fixed})
		require.NotNil(t, s.PercentComplete)
		assert.GreaterOrEqual(t, *s.PercentComplete, prev,
			"phase percent regressed when lines_translated rose to %d", completed)
		prev = *s.PercentComplete
	}
}

func TestComputeRunSummaryWeighted(t *testing.T) {
	run := &model.RunProgress{
		Phases: []model.PhaseProgress{
			{Phase: model.PhaseTranslate, Summary: summaryOf(50, model.PercentFinal, fptr(600))},
			{Phase: model.PhaseQA, Summary: summaryOf(100, model.PercentFinal, fptr(0))},
			{Phase: model.PhaseEdit, Summary: summaryOf(0, model.PercentLowerBound, fptr(900))},
		},
		PhaseWeights: map[model.Phase]float64{
			model.PhaseTranslate: 0.5,
			model.PhaseQA:        0.3,
			model.PhaseEdit:      0.2,
		},
	}

	s := progress.ComputeRunSummary(run)
	require.NotNil(t, s.PercentComplete)
	assert.InDelta(t, 55.0, *s.PercentComplete, 0.001)
	assert.Equal(t, model.PercentLowerBound, s.PercentMode)
	require.NotNil(t, s.ETASeconds)
	assert.InDelta(t, 1500.0, *s.ETASeconds, 0.001, "run ETA is the sum of phase ETAs")
}

func TestComputeRunSummaryEqualWeights(t *testing.T) {
	run := &model.RunProgress{
		Phases: []model.PhaseProgress{
			{Phase: model.PhaseTranslate, Summary: summaryOf(20, model.PercentFinal, nil)},
			{Phase: model.PhaseQA, Summary: summaryOf(80, model.PercentFinal, nil)},
		},
	}

	s := progress.ComputeRunSummary(run)
	require.NotNil(t, s.PercentComplete)
	assert.InDelta(t, 50.0, *s.PercentComplete, 0.001)
	assert.Nil(t, s.ETASeconds)
}

func TestComputeRunSummaryUnavailablePhaseGates(t *testing.T) {
	run := &model.RunProgress{
		Phases: []model.PhaseProgress{
			{Phase: model.PhaseTranslate, Summary: summaryOf(90, model.PercentFinal, nil)},
			{Phase: model.PhaseQA, Summary: model.ProgressSummary{PercentMode: model.PercentUnavailable}},
		},
	}

	s := progress.ComputeRunSummary(run)
	assert.Equal(t, model.PercentUnavailable, s.PercentMode)
	assert.Nil(t, s.PercentComplete)
}

func TestComputeRunSummaryEmpty(t *testing.T) {
	s := progress.ComputeRunSummary(&model.RunProgress{})
	assert.Equal(t, model.PercentUnavailable, s.PercentMode)
	assert.Nil(t, s.PercentComplete)
}

func TestRecompute(t *testing.T) {
	run := &model.RunProgress{
		Phases: []model.PhaseProgress{
			{
				Phase:  model.PhaseTranslate,
				Status: model.PhaseRunning,
				Metrics: []model.ProgressMetric{
					finalMetric("lines_translated", "lines", 5, 10),
					finalMetric("scenes_completed", "scenes", 4, 5),
				},
			},
			{
				Phase:  model.PhaseQA,
				Status: model.PhaseRunning,
				Metrics: []model.ProgressMetric{
					finalMetric("lines_checked", "lines", 10, 10),
				},
			},
		},
	}

	progress.Recompute(run)

	require.NotNil(t, run.Phases[0].Summary.PercentComplete)
	assert.InDelta(t, 50.0, *run.Phases[0].Summary.PercentComplete, 0.001)
	require.NotNil(t, run.Phases[1].Summary.PercentComplete)
	assert.InDelta(t, 100.0, *run.Phases[1].Summary.PercentComplete, 0.001)
	require.NotNil(t, run.Summary.PercentComplete)
	assert.InDelta(t, 75.0, *run.Summary.PercentComplete, 0.001)
	assert.Equal(t, model.PercentFinal, run.Summary.PercentMode)
}
