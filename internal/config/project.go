package config

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/trevorWieland/rentl-sub001/internal/model"
)

// FileRef names a source or output file and its format.
type FileRef struct {
	Format string `yaml:"format" json:"format"` // csv, jsonl, or txt
	Path   string `yaml:"path" json:"path"`
}

// Project is the declarative project definition loaded from YAML. The
// pipeline it carries is raw until ValidatePipeline has accepted it.
type Project struct {
	Name           string
	SourceLanguage language.Tag
	TargetLanguage language.Tag
	Source         FileRef
	Output         FileRef
	Pipeline       model.PipelineConfig
	Agents         map[model.Phase]model.AgentConfig
	PhaseWeights   map[model.Phase]float64
}

// File-shape types. Durations are integer milliseconds in YAML;
// booleans that default to true are pointers so absence is detectable.
type projectFile struct {
	Project        string               `yaml:"project"`
	SourceLanguage string               `yaml:"source_language"`
	TargetLanguage string               `yaml:"target_language"`
	Source         FileRef              `yaml:"source"`
	Output         FileRef              `yaml:"output"`
	Pipeline       pipelineSpec         `yaml:"pipeline"`
	Agents         map[string]agentSpec `yaml:"agents"`
	PhaseWeights   map[string]float64   `yaml:"phase_weights"`
}

type pipelineSpec struct {
	DefaultModel *model.ModelSettings `yaml:"default_model"`
	Approval     string               `yaml:"approval"`
	Phases       []phaseSpec          `yaml:"phases"`
}

type phaseSpec struct {
	Phase     string                      `yaml:"phase"`
	Enabled   *bool                       `yaml:"enabled"`
	Model     *model.ModelSettings        `yaml:"model"`
	Execution *model.PhaseExecutionConfig `yaml:"execution"`
}

type agentSpec struct {
	Model              *model.ModelSettings `yaml:"model"`
	SystemPrompt       string               `yaml:"system_prompt"`
	UserPromptTemplate string               `yaml:"user_prompt_template"`
	Tools              []string             `yaml:"tools"`
	MaxRetries         *int                 `yaml:"max_retries"`
	RetryBaseDelayMS   *int                 `yaml:"retry_base_delay_ms"`
}

const (
	defaultMaxRetries     = 2
	defaultRetryBaseDelay = time.Second
)

// LoadProject reads and parses a project file. Parsing is distinct from
// pipeline validation: callers pass the returned Pipeline through
// ValidatePipeline before executing anything.
func LoadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading project file: %w", err)
	}
	return ParseProject(data)
}

// ParseProject parses a project definition from YAML bytes.
func ParseProject(data []byte) (*Project, error) {
	var pf projectFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parsing project file: %w", err)
	}
	if pf.Project == "" {
		return nil, &model.ConfigurationError{Field: "project", Reason: "project name is required"}
	}

	src, err := language.Parse(pf.SourceLanguage)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "source_language", Reason: fmt.Sprintf("invalid language tag %q", pf.SourceLanguage)}
	}
	tgt, err := language.Parse(pf.TargetLanguage)
	if err != nil {
		return nil, &model.ConfigurationError{Field: "target_language", Reason: fmt.Sprintf("invalid language tag %q", pf.TargetLanguage)}
	}

	p := &Project{
		Name:           pf.Project,
		SourceLanguage: src,
		TargetLanguage: tgt,
		Source:         pf.Source,
		Output:         pf.Output,
		Pipeline: model.PipelineConfig{
			DefaultModel: pf.Pipeline.DefaultModel,
			Approval:     model.ApprovalPolicy(pf.Pipeline.Approval),
			Phases:       make([]model.PhaseConfig, 0, len(pf.Pipeline.Phases)),
		},
		Agents: make(map[model.Phase]model.AgentConfig, len(pf.Agents)),
	}

	for _, ps := range pf.Pipeline.Phases {
		enabled := true
		if ps.Enabled != nil {
			enabled = *ps.Enabled
		}
		p.Pipeline.Phases = append(p.Pipeline.Phases, model.PhaseConfig{
			// Left as-is even when unknown; the pipeline validator owns
			// phase-name rejection and its error message.
			Phase:     model.Phase(ps.Phase),
			Enabled:   enabled,
			Model:     ps.Model,
			Execution: ps.Execution,
		})
	}

	for name, as := range pf.Agents {
		phase, err := model.ParsePhase(name)
		if err != nil {
			return nil, &model.ConfigurationError{Field: "agents", Reason: fmt.Sprintf("agent key must be a phase name: %v", err)}
		}
		p.Agents[phase] = buildAgent(phase, as)
	}

	if len(pf.PhaseWeights) > 0 {
		p.PhaseWeights = make(map[model.Phase]float64, len(pf.PhaseWeights))
		for name, w := range pf.PhaseWeights {
			phase, err := model.ParsePhase(name)
			if err != nil {
				return nil, &model.ConfigurationError{Field: "phase_weights", Reason: err.Error()}
			}
			p.PhaseWeights[phase] = w
		}
	}

	return p, nil
}

func buildAgent(phase model.Phase, as agentSpec) model.AgentConfig {
	cfg := model.AgentConfig{
		Name:               string(phase),
		SystemPrompt:       as.SystemPrompt,
		UserPromptTemplate: as.UserPromptTemplate,
		Tools:              as.Tools,
		MaxRetries:         defaultMaxRetries,
		RetryBaseDelay:     defaultRetryBaseDelay,
	}
	if as.Model != nil {
		cfg.Model = *as.Model
	}
	if as.MaxRetries != nil {
		cfg.MaxRetries = *as.MaxRetries
	}
	if as.RetryBaseDelayMS != nil {
		cfg.RetryBaseDelay = time.Duration(*as.RetryBaseDelayMS) * time.Millisecond
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt(phase)
	}
	if cfg.UserPromptTemplate == "" {
		cfg.UserPromptTemplate = defaultUserPromptTemplate(phase)
	}
	return cfg
}

// AgentFor returns the agent configuration for a phase, falling back to
// the built-in defaults when the project file defines none.
func (p *Project) AgentFor(phase model.Phase) model.AgentConfig {
	if cfg, ok := p.Agents[phase]; ok {
		return cfg
	}
	return buildAgent(phase, agentSpec{})
}

// ApplyConfigDefaults fills pipeline gaps the project file left open
// from process configuration: the approval policy, and the default
// model when RENTL_ENDPOINT and RENTL_MODEL are both set. The project
// file always wins. Call before ValidatePipeline so an env-configured
// deployment passes model resolution.
func (p *Project) ApplyConfigDefaults(cfg Config) {
	if p.Pipeline.Approval == "" {
		p.Pipeline.Approval = cfg.ApprovalPolicy
	}
	if p.Pipeline.DefaultModel == nil && cfg.DefaultEndpoint != "" && cfg.DefaultModel != "" {
		p.Pipeline.DefaultModel = &model.ModelSettings{
			Endpoint: cfg.DefaultEndpoint,
			Model:    cfg.DefaultModel,
		}
	}
}
