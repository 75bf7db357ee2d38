package pipeline_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/pipeline"
)

// shardLines builds n lines cycling through the given scenes, so scene
// grouping has interleaved input to untangle.
func shardLines(n int, scenes ...string) []model.DialogueLine {
	lines := make([]model.DialogueLine, n)
	for i := range lines {
		scene := ""
		if len(scenes) > 0 {
			scene = scenes[i%len(scenes)]
		}
		lines[i] = model.DialogueLine{
			ID:     fmt.Sprintf("l%d", i),
			Scene:  scene,
			Source: "……",
		}
	}
	return lines
}

func intp(v int) *int { return &v }

func TestShardFullSingleUnit(t *testing.T) {
	lines := shardLines(5, "a", "b")

	units, err := pipeline.Shard(model.PhaseTranslate, lines, nil)
	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, "translate-0", u.ID)
	assert.Equal(t, model.PhaseTranslate, u.Phase)
	assert.Equal(t, 0, u.Index)
	assert.Empty(t, u.Scene, "a multi-scene unit carries no scene label")
	assert.Len(t, u.Lines, 5)
}

func TestShardChunkSplits(t *testing.T) {
	lines := shardLines(5)
	exec := &model.PhaseExecutionConfig{Strategy: model.ShardChunk, ChunkSize: intp(2)}

	units, err := pipeline.Shard(model.PhaseQA, lines, exec)
	require.NoError(t, err)
	require.Len(t, units, 3)

	var got []string
	for i, u := range units {
		assert.Equal(t, fmt.Sprintf("qa-%d", i), u.ID)
		assert.Equal(t, i, u.Index)
		for _, l := range u.Lines {
			got = append(got, l.ID)
		}
	}
	assert.Len(t, units[0].Lines, 2)
	assert.Len(t, units[1].Lines, 2)
	assert.Len(t, units[2].Lines, 1)
	assert.Equal(t, []string{"l0", "l1", "l2", "l3", "l4"}, got,
		"chunking must preserve input order")
}

func TestShardSceneGroupsInterleavedLines(t *testing.T) {
	// Input order: prologue, festival, prologue, festival, prologue.
	lines := shardLines(5, "prologue", "festival")
	exec := &model.PhaseExecutionConfig{Strategy: model.ShardScene, SceneBatchSize: intp(1)}

	units, err := pipeline.Shard(model.PhaseContext, lines, exec)
	require.NoError(t, err)
	require.Len(t, units, 2, "two scenes, one per unit")

	assert.Equal(t, "prologue", units[0].Scene, "first-appearance order decides unit order")
	assert.Len(t, units[0].Lines, 3)
	assert.Equal(t, "festival", units[1].Scene)
	assert.Len(t, units[1].Lines, 2)

	for _, u := range units {
		for _, l := range u.Lines {
			assert.Equal(t, u.Scene, l.Scene)
		}
	}
}

func TestShardSceneBatchingClearsLabel(t *testing.T) {
	lines := shardLines(6, "a", "b", "c")
	exec := &model.PhaseExecutionConfig{Strategy: model.ShardScene, SceneBatchSize: intp(2)}

	units, err := pipeline.Shard(model.PhaseContext, lines, exec)
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Empty(t, units[0].Scene, "a two-scene unit is not addressable by one scene name")
	assert.Len(t, units[0].Lines, 4)
	assert.Equal(t, "c", units[1].Scene, "a leftover single-scene unit keeps its label")
	assert.Len(t, units[1].Lines, 2)
}

func TestShardRouteGroups(t *testing.T) {
	lines := shardLines(4)
	lines[0].Route = "aya"
	lines[1].Route = "ren"
	lines[2].Route = "aya"
	lines[3].Route = "ren"
	exec := &model.PhaseExecutionConfig{Strategy: model.ShardRoute, RouteBatchSize: intp(1)}

	units, err := pipeline.Shard(model.PhaseTranslate, lines, exec)
	require.NoError(t, err)
	require.Len(t, units, 2)

	assert.Equal(t, "aya", units[0].Route)
	assert.Equal(t, []string{"l0", "l2"}, lineIDs(units[0]))
	assert.Equal(t, "ren", units[1].Route)
	assert.Equal(t, []string{"l1", "l3"}, lineIDs(units[1]))
}

func TestShardEmptyInput(t *testing.T) {
	_, err := pipeline.Shard(model.PhaseTranslate, nil, nil)
	require.Error(t, err)
}

func TestShardUnknownStrategy(t *testing.T) {
	exec := &model.PhaseExecutionConfig{Strategy: "zigzag"}
	_, err := pipeline.Shard(model.PhaseTranslate, shardLines(2), exec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zigzag")
}

func lineIDs(u model.WorkUnit) []string {
	ids := make([]string, len(u.Lines))
	for i, l := range u.Lines {
		ids[i] = l.ID
	}
	return ids
}
