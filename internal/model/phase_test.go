package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

func TestPhaseRank(t *testing.T) {
	// Verify strict canonical ordering: ingest < context < pretranslation
	// < translate < qa < edit < export. Unknown phases rank -1.
	ordered := []model.Phase{
		model.PhaseIngest,
		model.PhaseContext,
		model.PhasePretranslation,
		model.PhaseTranslate,
		model.PhaseQA,
		model.PhaseEdit,
		model.PhaseExport,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, model.PhaseRank(ordered[i]), model.PhaseRank(ordered[i-1]),
			"%q should rank after %q", ordered[i], ordered[i-1])
	}
	assert.Equal(t, -1, model.PhaseRank(model.Phase("proofread")))
	assert.Equal(t, -1, model.PhaseRank(model.Phase("")))
}

func TestParsePhase(t *testing.T) {
	p, err := model.ParsePhase("translate")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseTranslate, p)

	_, err = model.ParsePhase("Translate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Translate")
}

func TestRequiredPhasesAreOrderedSubset(t *testing.T) {
	last := -1
	for _, p := range model.RequiredPhases {
		rank := model.PhaseRank(p)
		require.GreaterOrEqual(t, rank, 0, "required phase %q must be known", p)
		assert.Greater(t, rank, last)
		last = rank
	}
	// Boundary phases are optional, never required.
	assert.NotContains(t, model.RequiredPhases, model.PhaseIngest)
	assert.NotContains(t, model.RequiredPhases, model.PhaseExport)
}
