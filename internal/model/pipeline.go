package model

import (
	"time"
)

// ShardStrategy selects how a phase's input is split into work units.
type ShardStrategy string

const (
	// ShardFull submits the whole input as a single work unit.
	ShardFull ShardStrategy = "full"
	// ShardChunk splits the input into fixed-size line chunks.
	ShardChunk ShardStrategy = "chunk"
	// ShardScene groups lines by scene, batched scene-count at a time.
	ShardScene ShardStrategy = "scene"
	// ShardRoute groups lines by route, batched route-count at a time.
	ShardRoute ShardStrategy = "route"
)

// Valid reports whether s is a known strategy.
func (s ShardStrategy) Valid() bool {
	switch s {
	case ShardFull, ShardChunk, ShardScene, ShardRoute:
		return true
	}
	return false
}

// ModelSettings identifies the model endpoint a phase's agents call.
type ModelSettings struct {
	Endpoint    string   `json:"endpoint" yaml:"endpoint"`
	Model       string   `json:"model" yaml:"model"`
	APIKeyEnv   string   `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// PhaseExecutionConfig controls work splitting and parallelism for one
// phase. Exactly the size field matching Strategy may be set; all others
// must be absent.
type PhaseExecutionConfig struct {
	Strategy          ShardStrategy `json:"strategy" yaml:"strategy"`
	ChunkSize         *int          `json:"chunk_size,omitempty" yaml:"chunk_size,omitempty"`
	SceneBatchSize    *int          `json:"scene_batch_size,omitempty" yaml:"scene_batch_size,omitempty"`
	RouteBatchSize    *int          `json:"route_batch_size,omitempty" yaml:"route_batch_size,omitempty"`
	MaxParallelAgents *int          `json:"max_parallel_agents,omitempty" yaml:"max_parallel_agents,omitempty"`
}

// PhaseConfig configures a single pipeline phase. Owned by the validated
// pipeline configuration; immutable for the lifetime of a run.
type PhaseConfig struct {
	Phase     Phase                 `json:"phase" yaml:"phase"`
	Enabled   bool                  `json:"enabled" yaml:"enabled"`
	Model     *ModelSettings        `json:"model,omitempty" yaml:"model,omitempty"`
	Execution *PhaseExecutionConfig `json:"execution,omitempty" yaml:"execution,omitempty"`
}

// PipelineConfig is the declarative pipeline definition, as supplied by
// the configuration loader and checked by the validator before any
// execution begins.
type PipelineConfig struct {
	Phases       []PhaseConfig  `json:"phases" yaml:"phases"`
	DefaultModel *ModelSettings `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	Approval     ApprovalPolicy `json:"approval,omitempty" yaml:"approval,omitempty"`
}

// PhaseFor returns the configuration for phase p, or nil when p is not
// part of the pipeline.
func (c *PipelineConfig) PhaseFor(p Phase) *PhaseConfig {
	for i := range c.Phases {
		if c.Phases[i].Phase == p {
			return &c.Phases[i]
		}
	}
	return nil
}

// ModelFor resolves the model settings for phase p, falling back to the
// pipeline default when the phase carries none.
func (c *PipelineConfig) ModelFor(p Phase) *ModelSettings {
	if pc := c.PhaseFor(p); pc != nil && pc.Model != nil {
		return pc.Model
	}
	return c.DefaultModel
}

// AgentConfig describes one agent: where it runs, what it is prompted
// with, and its retry budget. Built by the configuration loader; loaded
// once, never mutated during a run.
type AgentConfig struct {
	Name               string        `json:"name"`
	Model              ModelSettings `json:"model"`
	SystemPrompt       string        `json:"system_prompt"`
	UserPromptTemplate string        `json:"user_prompt_template"`
	Tools              []string      `json:"tools,omitempty"`
	MaxRetries         int           `json:"max_retries"`
	RetryBaseDelay     time.Duration `json:"retry_base_delay"`
}
