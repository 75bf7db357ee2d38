package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevorWieland/rentl-sub001/internal/config"
	"github.com/trevorWieland/rentl-sub001/internal/model"
)

const sampleProject = `
project: ayane
source_language: ja
target_language: en
source:
  format: csv
  path: testdata/script.csv
output:
  format: csv
  path: out/script.en.csv
pipeline:
  default_model:
    endpoint: http://localhost:8000/v1
    model: big-translator
    api_key_env: LLM_API_KEY
  approval: standard
  phases:
    - phase: ingest
    - phase: context
    - phase: pretranslation
    - phase: translate
      execution:
        strategy: scene
        scene_batch_size: 4
        max_parallel_agents: 4
    - phase: qa
    - phase: edit
      enabled: false
    - phase: export
agents:
  translate:
    system_prompt: Translate faithfully.
    user_prompt_template: "{{range .Lines}}{{.ID}} {{.Source}}\n{{end}}"
    tools: [glossary_lookup]
    max_retries: 3
    retry_base_delay_ms: 500
  qa:
    max_retries: 0
phase_weights:
  translate: 0.6
  qa: 0.4
`

func TestParseProject(t *testing.T) {
	p, err := config.ParseProject([]byte(sampleProject))
	require.NoError(t, err)

	assert.Equal(t, "ayane", p.Name)
	assert.Equal(t, "ja", p.SourceLanguage.String())
	assert.Equal(t, "en", p.TargetLanguage.String())
	assert.Equal(t, "csv", p.Source.Format)
	assert.Equal(t, "out/script.en.csv", p.Output.Path)

	require.Len(t, p.Pipeline.Phases, 7)
	assert.True(t, p.Pipeline.Phases[0].Enabled, "enabled defaults to true")
	assert.False(t, p.Pipeline.Phases[5].Enabled, "edit is explicitly disabled")

	translate := p.Pipeline.PhaseFor(model.PhaseTranslate)
	require.NotNil(t, translate)
	require.NotNil(t, translate.Execution)
	assert.Equal(t, model.ShardScene, translate.Execution.Strategy)
	require.NotNil(t, translate.Execution.SceneBatchSize)
	assert.Equal(t, 4, *translate.Execution.SceneBatchSize)

	// The parsed pipeline passes validation as-is.
	_, err = config.ValidatePipeline(&p.Pipeline)
	require.NoError(t, err)
}

func TestParseProject_Agents(t *testing.T) {
	p, err := config.ParseProject([]byte(sampleProject))
	require.NoError(t, err)

	tr := p.AgentFor(model.PhaseTranslate)
	assert.Equal(t, "translate", tr.Name)
	assert.Equal(t, "Translate faithfully.", tr.SystemPrompt)
	assert.Equal(t, []string{"glossary_lookup"}, tr.Tools)
	assert.Equal(t, 3, tr.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, tr.RetryBaseDelay)

	// Explicit zero retries survives (exactly one attempt).
	qa := p.AgentFor(model.PhaseQA)
	assert.Equal(t, 0, qa.MaxRetries)
	assert.Equal(t, time.Second, qa.RetryBaseDelay)
	assert.NotEmpty(t, qa.SystemPrompt, "missing prompts fall back to built-ins")

	// Phases without an agents entry get full defaults.
	ctx := p.AgentFor(model.PhaseContext)
	assert.Equal(t, 2, ctx.MaxRetries)
	assert.NotEmpty(t, ctx.UserPromptTemplate)
}

func TestParseProject_Weights(t *testing.T) {
	p, err := config.ParseProject([]byte(sampleProject))
	require.NoError(t, err)
	require.NotNil(t, p.PhaseWeights)
	assert.InDelta(t, 0.6, p.PhaseWeights[model.PhaseTranslate], 1e-9)
	assert.InDelta(t, 0.4, p.PhaseWeights[model.PhaseQA], 1e-9)
}

func TestApplyConfigDefaults(t *testing.T) {
	cfg := config.Config{
		DefaultEndpoint: "http://env:8000/v1",
		DefaultModel:    "env-model",
		ApprovalPolicy:  model.ApprovalStrict,
	}

	t.Run("fills gaps", func(t *testing.T) {
		p := &config.Project{}
		p.ApplyConfigDefaults(cfg)
		assert.Equal(t, model.ApprovalStrict, p.Pipeline.Approval)
		require.NotNil(t, p.Pipeline.DefaultModel)
		assert.Equal(t, "http://env:8000/v1", p.Pipeline.DefaultModel.Endpoint)
		assert.Equal(t, "env-model", p.Pipeline.DefaultModel.Model)
	})

	t.Run("project file wins", func(t *testing.T) {
		p, err := config.ParseProject([]byte(sampleProject))
		require.NoError(t, err)
		p.ApplyConfigDefaults(cfg)
		assert.Equal(t, model.ApprovalStandard, p.Pipeline.Approval)
		assert.Equal(t, "big-translator", p.Pipeline.DefaultModel.Model)
	})

	t.Run("partial env default fills nothing", func(t *testing.T) {
		p := &config.Project{}
		p.ApplyConfigDefaults(config.Config{DefaultEndpoint: "http://env:8000/v1"})
		assert.Nil(t, p.Pipeline.DefaultModel)
	})
}

func TestParseProject_Errors(t *testing.T) {
	_, err := config.ParseProject([]byte("project: x\nsource_language: nope!\ntarget_language: en\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_language")

	_, err = config.ParseProject([]byte("source_language: ja\ntarget_language: en\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project name is required")

	_, err = config.ParseProject([]byte("project: x\nsource_language: ja\ntarget_language: en\nagents:\n  proofread: {}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent key must be a phase name")

	_, err = config.ParseProject([]byte(":::"))
	require.Error(t, err)
}
