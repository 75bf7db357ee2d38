package pipeline

import (
	"fmt"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// Shard splits a phase's input lines into work units per the phase's
// execution settings. A nil exec means the full strategy. Unit IDs are
// "<phase>-<n>" with n counting from zero in input order, so a given
// input always shards the same way.
func Shard(phase model.Phase, lines []model.DialogueLine, exec *model.PhaseExecutionConfig) ([]model.WorkUnit, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("pipeline: phase %s: no lines to shard", phase)
	}

	strategy := model.ShardFull
	if exec != nil {
		strategy = exec.Strategy
	}

	switch strategy {
	case model.ShardFull:
		return []model.WorkUnit{unit(phase, 0, "", "", lines)}, nil
	case model.ShardChunk:
		return shardChunk(phase, lines, *exec.ChunkSize), nil
	case model.ShardScene:
		return shardGrouped(phase, lines, *exec.SceneBatchSize, groupByScene), nil
	case model.ShardRoute:
		return shardGrouped(phase, lines, *exec.RouteBatchSize, groupByRoute), nil
	default:
		return nil, fmt.Errorf("pipeline: phase %s: unknown sharding strategy %q", phase, strategy)
	}
}

func unit(phase model.Phase, index int, scene, route string, lines []model.DialogueLine) model.WorkUnit {
	return model.WorkUnit{
		ID:    fmt.Sprintf("%s-%d", phase, index),
		Phase: phase,
		Index: index,
		Scene: scene,
		Route: route,
		Lines: lines,
	}
}

func shardChunk(phase model.Phase, lines []model.DialogueLine, size int) []model.WorkUnit {
	units := make([]model.WorkUnit, 0, (len(lines)+size-1)/size)
	for start := 0; start < len(lines); start += size {
		end := min(start+size, len(lines))
		units = append(units, unit(phase, len(units), "", "", lines[start:end:end]))
	}
	return units
}

// groupKind selects which line field groups lines and labels
// single-group units.
type groupKind int

const (
	groupByScene groupKind = iota
	groupByRoute
)

func (g groupKind) key(l model.DialogueLine) string {
	if g == groupByScene {
		return l.Scene
	}
	return l.Route
}

// shardGrouped collects lines into groups, preserving first-appearance
// order, then packs batchSize groups into each unit. The unit's Scene
// or Route is set only when the unit holds exactly one group, so
// single-group units stay addressable by name.
func shardGrouped(phase model.Phase, lines []model.DialogueLine, batchSize int, kind groupKind) []model.WorkUnit {
	var order []string
	groups := make(map[string][]model.DialogueLine)
	for _, l := range lines {
		k := kind.key(l)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], l)
	}

	var units []model.WorkUnit
	for start := 0; start < len(order); start += batchSize {
		end := min(start+batchSize, len(order))
		batch := order[start:end]

		var merged []model.DialogueLine
		for _, k := range batch {
			merged = append(merged, groups[k]...)
		}

		scene, route := "", ""
		if len(batch) == 1 {
			if kind == groupByScene {
				scene = batch[0]
			} else {
				route = batch[0]
			}
		}
		units = append(units, unit(phase, len(units), scene, route, merged))
	}
	return units
}
