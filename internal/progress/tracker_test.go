package progress_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/progress"
)

func TestTrackerUpdateAndCurrent(t *testing.T) {
	tr := progress.NewTracker()
	assert.Nil(t, tr.Current())

	snap := snapshotWith(model.PhaseTranslate, "lines_translated", "lines", 40, 40, model.PercentFinal)
	require.NoError(t, tr.Update(snap))

	got := tr.Current()
	require.NotNil(t, got)
	assert.Equal(t, int64(40), got.Phases[0].Metrics[0].CompletedUnits)
}

func TestTrackerStoresSnapshotDespiteViolation(t *testing.T) {
	tr := progress.NewTracker()
	require.NoError(t, tr.Update(snapshotWith(model.PhaseTranslate, "lines_translated", "lines", 80, 80, model.PercentFinal)))

	err := tr.Update(snapshotWith(model.PhaseTranslate, "lines_translated", "lines", 60, 60, model.PercentFinal))
	require.Error(t, err)
	var v *model.MonotonicityViolation
	require.ErrorAs(t, err, &v)

	got := tr.Current()
	require.NotNil(t, got)
	assert.Equal(t, int64(60), got.Phases[0].Metrics[0].CompletedUnits,
		"the regressed snapshot is stored; the violation is a signal, not a rollback")
}

func TestTrackerRejectsInvalidSnapshot(t *testing.T) {
	tr := progress.NewTracker()

	bad := snapshotWith(model.PhaseTranslate, "bogus_metric", "lines", 10, 10, model.PercentFinal)
	err := tr.Update(bad)
	require.Error(t, err)
	assert.Nil(t, tr.Current(), "an invalid snapshot must not be stored")

	require.Error(t, tr.Update(nil))
}

func TestTrackerCloneIsolation(t *testing.T) {
	tr := progress.NewTracker()
	snap := snapshotWith(model.PhaseTranslate, "lines_translated", "lines", 40, 40, model.PercentFinal)
	require.NoError(t, tr.Update(snap))

	// Mutating the caller's copy must not reach the tracked snapshot.
	snap.Phases[0].Metrics[0].CompletedUnits = 0
	*snap.Phases[0].Metrics[0].PercentComplete = 0

	got := tr.Current()
	assert.Equal(t, int64(40), got.Phases[0].Metrics[0].CompletedUnits)
	assert.InDelta(t, 40.0, *got.Phases[0].Metrics[0].PercentComplete, 0.001)

	// And mutating what Current returned must not either.
	got.Phases[0].Metrics[0].CompletedUnits = 99
	again := tr.Current()
	assert.Equal(t, int64(40), again.Phases[0].Metrics[0].CompletedUnits)
}

func TestClone(t *testing.T) {
	assert.Nil(t, progress.Clone(nil))

	orig := snapshotWith(model.PhaseTranslate, "lines_translated", "lines", 40, 40, model.PercentFinal)
	orig.PhaseWeights = map[model.Phase]float64{model.PhaseTranslate: 1.0}
	progress.Recompute(orig)

	c := progress.Clone(orig)
	require.NotNil(t, c)
	assert.Equal(t, orig, c)

	*orig.Phases[0].Metrics[0].PercentComplete = 5
	orig.PhaseWeights[model.PhaseTranslate] = 0.5
	assert.InDelta(t, 40.0, *c.Phases[0].Metrics[0].PercentComplete, 0.001)
	assert.InDelta(t, 1.0, c.PhaseWeights[model.PhaseTranslate], 0.001)
}

func TestTrackerRegisterMetrics(t *testing.T) {
	// With no meter provider configured the global is a no-op;
	// registration must still be safe.
	tr := progress.NewTracker()
	tr.RegisterMetrics()
	require.NoError(t, tr.Update(snapshotWith(model.PhaseTranslate, "lines_translated", "lines", 10, 10, model.PercentFinal)))
}
