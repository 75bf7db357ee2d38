// Package agent runs configured LLM agents over work units. A Harness
// executes one unit with bounded retries, a Factory builds and caches
// harnesses by configuration identity, and a Pool fans a phase's units
// out across harness instances under a concurrency bound.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/trevorWieland/rentl-sub001/internal/invoke"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/prompt"
	"github.com/trevorWieland/rentl-sub001/internal/registry"
)

// ErrNotInitialized is returned by Run on a harness that has not been
// armed with Initialize.
var ErrNotInitialized = errors.New("agent: harness not initialized")

// Meta identifies the project a harness renders prompts for.
type Meta struct {
	Project        string
	SourceLanguage string
	TargetLanguage string
}

// Config carries everything one harness needs: the agent settings, the
// output contract, the resolved tools, and the project identity used in
// prompt rendering.
type Config struct {
	Agent  model.AgentConfig
	Schema registry.Schema
	Tools  []registry.Tool
	Meta   Meta
}

// Harness executes work units against one agent configuration.
// Construction is two-phase: NewHarness allocates around a model
// client, Initialize validates the configuration and arms the harness.
// A Harness is safe for concurrent use once initialized; all fields are
// read-only after Initialize returns.
type Harness struct {
	client invoke.Client

	cfg   Config
	tmpl  *prompt.Template
	specs []invoke.ToolSpec

	initialized bool
}

// NewHarness allocates an unarmed harness around a model client.
// Initialize must be called before Run.
func NewHarness(client invoke.Client) *Harness {
	return &Harness{client: client}
}

// Initialize validates cfg and arms the harness. An empty system
// prompt, empty user-prompt template, negative retry budget, or
// non-positive base delay is rejected here, before any unit runs.
func (h *Harness) Initialize(cfg Config) error {
	agent := cfg.Agent
	phase := model.Phase(agent.Name)
	if agent.SystemPrompt == "" {
		return &model.ConfigurationError{Phase: phase, Field: "system_prompt", Reason: "must not be empty"}
	}
	if agent.UserPromptTemplate == "" {
		return &model.ConfigurationError{Phase: phase, Field: "user_prompt_template", Reason: "must not be empty"}
	}
	if agent.MaxRetries < 0 {
		return &model.ConfigurationError{Phase: phase, Field: "max_retries", Reason: "must not be negative"}
	}
	if agent.RetryBaseDelay <= 0 {
		return &model.ConfigurationError{Phase: phase, Field: "retry_base_delay", Reason: "must be positive"}
	}
	if cfg.Schema.Decode == nil {
		return &model.ConfigurationError{Phase: phase, Field: "output_schema", Reason: "no output schema configured"}
	}

	tmpl, err := prompt.Parse(agent.UserPromptTemplate)
	if err != nil {
		return &model.ConfigurationError{Phase: phase, Field: "user_prompt_template", Reason: err.Error()}
	}

	specs := make([]invoke.ToolSpec, 0, len(cfg.Tools))
	for _, tool := range cfg.Tools {
		specs = append(specs, invoke.ToolSpec{Name: tool.Name, Description: tool.Description})
	}

	h.cfg = cfg
	h.tmpl = tmpl
	h.specs = specs
	h.initialized = true
	return nil
}

// Run executes one work unit: validate the payload, then
// render-invoke-validate with retries. Render, invocation, and output
// failures retry with exponential backoff until the budget is spent,
// then surface as an ExecutionFailure wrapping the last cause. A
// malformed payload is never retried.
func (h *Harness) Run(ctx context.Context, unit model.WorkUnit) (any, error) {
	if !h.initialized {
		return nil, ErrNotInitialized
	}
	if err := unit.Validate(); err != nil {
		return nil, &model.ValidationError{Contract: "input", Reason: err.Error()}
	}

	var lastErr error
	for attempt := 0; attempt <= h.cfg.Agent.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := h.cfg.Agent.RetryBaseDelay * time.Duration(1<<(attempt-1))
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		out, err := h.attempt(ctx, unit)
		if err == nil {
			return out, nil
		}
		lastErr = err
	}
	return nil, &model.ExecutionFailure{
		UnitID:   unit.ID,
		Attempts: h.cfg.Agent.MaxRetries + 1,
		Err:      lastErr,
	}
}

// attempt performs one render-invoke-validate cycle. The model is
// invoked exactly once per call.
func (h *Harness) attempt(ctx context.Context, unit model.WorkUnit) (any, error) {
	meta := h.cfg.Meta
	payload := prompt.FromUnit(meta.Project, meta.SourceLanguage, meta.TargetLanguage, unit)
	user, err := h.tmpl.Render(payload)
	if err != nil {
		return nil, fmt.Errorf("agent: render prompt for unit %s: %w", unit.ID, err)
	}

	resp, err := h.client.Invoke(ctx, invoke.Request{
		Model:        h.cfg.Agent.Model.Model,
		System:       h.cfg.Agent.SystemPrompt,
		User:         user,
		Tools:        h.specs,
		OutputSchema: h.cfg.Schema.Name,
		Temperature:  h.cfg.Agent.Model.Temperature,
		MaxTokens:    h.cfg.Agent.Model.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("agent: invoke model for unit %s: %w", unit.ID, err)
	}

	out, err := h.cfg.Schema.Decode([]byte(resp.Content))
	if err != nil {
		return nil, &model.ValidationError{Contract: "output " + h.cfg.Schema.Name, Reason: err.Error()}
	}
	if rc, ok := out.(model.ResultContract); ok {
		if err := rc.ValidateForUnit(unit); err != nil {
			return nil, &model.ValidationError{Contract: "output " + h.cfg.Schema.Name, Reason: err.Error()}
		}
	}
	return out, nil
}
