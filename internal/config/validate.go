package config

import (
	"fmt"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// ValidatePipeline checks a candidate pipeline definition before any
// execution begins. Pure: it reads cfg, and on success returns a
// normalized copy with defaults applied. On failure it returns a
// *model.ConfigurationError naming the offending phase or field.
//
// Checks, in order: phase names and uniqueness, canonical ordering,
// required-phase presence, per-phase sharding settings, and model
// resolution (a pipeline without a default model must pin model
// settings on every enabled phase rather than fail mid-run).
func ValidatePipeline(cfg *model.PipelineConfig) (*model.PipelineConfig, error) {
	if cfg == nil || len(cfg.Phases) == 0 {
		return nil, &model.ConfigurationError{Reason: "pipeline has no phases"}
	}

	lastRank := -1
	seen := make(map[model.Phase]bool, len(cfg.Phases))
	for _, pc := range cfg.Phases {
		rank := model.PhaseRank(pc.Phase)
		if rank < 0 {
			return nil, &model.ConfigurationError{Phase: pc.Phase, Reason: "unknown phase"}
		}
		if seen[pc.Phase] {
			return nil, &model.ConfigurationError{Phase: pc.Phase, Reason: "phase appears more than once"}
		}
		seen[pc.Phase] = true
		if rank < lastRank {
			return nil, &model.ConfigurationError{Phase: pc.Phase, Reason: "phase is out of canonical order"}
		}
		lastRank = rank
	}

	for _, req := range model.RequiredPhases {
		if !seen[req] {
			return nil, &model.ConfigurationError{Phase: req, Reason: "required phase is missing from the pipeline"}
		}
	}

	for _, pc := range cfg.Phases {
		if pc.Execution != nil {
			if err := validateExecution(pc.Phase, pc.Execution); err != nil {
				return nil, err
			}
		}
		if pc.Model != nil {
			if err := validateModel(pc.Phase, pc.Model); err != nil {
				return nil, err
			}
		}
	}

	if cfg.DefaultModel != nil {
		if err := validateModel("", cfg.DefaultModel); err != nil {
			return nil, err
		}
	} else {
		for _, pc := range cfg.Phases {
			if pc.Enabled && pc.Model == nil {
				return nil, &model.ConfigurationError{
					Phase:  pc.Phase,
					Field:  "model",
					Reason: "phase has no model settings and the pipeline has no default_model",
				}
			}
		}
	}

	out := *cfg
	if out.Approval == "" {
		out.Approval = model.ApprovalStandard
	}
	if !out.Approval.Valid() {
		return nil, &model.ConfigurationError{
			Field:  "approval",
			Reason: fmt.Sprintf("unknown approval policy %q", out.Approval),
		}
	}
	return &out, nil
}

// validateExecution enforces the sharding invariant: exactly the size
// field matching the strategy is set, and it is positive.
func validateExecution(phase model.Phase, exec *model.PhaseExecutionConfig) error {
	if !exec.Strategy.Valid() {
		return &model.ConfigurationError{
			Phase:  phase,
			Field:  "strategy",
			Reason: fmt.Sprintf("unknown sharding strategy %q", exec.Strategy),
		}
	}

	sizeFields := []struct {
		name string
		val  *int
	}{
		{"chunk_size", exec.ChunkSize},
		{"scene_batch_size", exec.SceneBatchSize},
		{"route_batch_size", exec.RouteBatchSize},
	}
	requiredFor := map[model.ShardStrategy]string{
		model.ShardChunk: "chunk_size",
		model.ShardScene: "scene_batch_size",
		model.ShardRoute: "route_batch_size",
	}

	want := requiredFor[exec.Strategy] // empty for full
	for _, f := range sizeFields {
		if f.name == want {
			if f.val == nil {
				return &model.ConfigurationError{
					Phase:  phase,
					Field:  f.name,
					Reason: fmt.Sprintf("%s is required for %s strategy", f.name, exec.Strategy),
				}
			}
			if *f.val <= 0 {
				return &model.ConfigurationError{
					Phase:  phase,
					Field:  f.name,
					Reason: fmt.Sprintf("%s must be positive", f.name),
				}
			}
			continue
		}
		if f.val != nil {
			return &model.ConfigurationError{
				Phase:  phase,
				Field:  f.name,
				Reason: fmt.Sprintf("%s must not be set for %s strategy", f.name, exec.Strategy),
			}
		}
	}

	if exec.MaxParallelAgents != nil && *exec.MaxParallelAgents <= 0 {
		return &model.ConfigurationError{
			Phase:  phase,
			Field:  "max_parallel_agents",
			Reason: "max_parallel_agents must be positive",
		}
	}
	return nil
}

func validateModel(phase model.Phase, ms *model.ModelSettings) error {
	if ms.Endpoint == "" {
		return &model.ConfigurationError{Phase: phase, Field: "endpoint", Reason: "model endpoint is required"}
	}
	if ms.Model == "" {
		return &model.ConfigurationError{Phase: phase, Field: "model", Reason: "model name is required"}
	}
	return nil
}
