package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/trevorWieland/rentl-sub001/internal/invoke"
	"github.com/trevorWieland/rentl-sub001/internal/model"
	"github.com/trevorWieland/rentl-sub001/internal/registry"
)

// ClientFunc builds a model client for one agent's endpoint settings.
type ClientFunc func(ms model.ModelSettings) (invoke.Client, error)

// Factory builds and caches harnesses keyed by configuration identity:
// a hash of the canonical agent-config serialization joined with the
// output schema name. Identical configuration and output type share one
// harness instance. Safe for concurrent use; concurrent builds of the
// same identity are deduplicated.
type Factory struct {
	meta    Meta
	clients ClientFunc
	schemas *registry.Schemas
	tools   *registry.Tools

	mu    sync.RWMutex
	cache map[string]*Harness
	group singleflight.Group
}

// NewFactory creates a factory for one project. clients builds a model
// client per endpoint configuration; schemas resolves output contracts;
// tools may be nil when no agent names tools.
func NewFactory(meta Meta, clients ClientFunc, schemas *registry.Schemas, tools *registry.Tools) *Factory {
	return &Factory{
		meta:    meta,
		clients: clients,
		schemas: schemas,
		tools:   tools,
		cache:   make(map[string]*Harness),
	}
}

// identity derives the cache key for one agent configuration and output
// schema. Struct serialization is deterministic: field order is fixed
// and the config holds no maps.
func identity(cfg model.AgentConfig, schemaName string) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("agent: canonicalize config: %w", err)
	}
	sum := sha256.Sum256(append(raw, []byte("\x00"+schemaName)...))
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the harness for (cfg, schemaName), building and
// initializing one on first use.
func (f *Factory) Get(cfg model.AgentConfig, schemaName string) (*Harness, error) {
	key, err := identity(cfg, schemaName)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	h, ok := f.cache[key]
	f.mu.RUnlock()
	if ok {
		return h, nil
	}

	v, err, _ := f.group.Do(key, func() (any, error) {
		f.mu.RLock()
		h, ok := f.cache[key]
		f.mu.RUnlock()
		if ok {
			return h, nil
		}
		built, err := f.build(cfg, schemaName)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		f.cache[key] = built
		f.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Harness), nil
}

func (f *Factory) build(cfg model.AgentConfig, schemaName string) (*Harness, error) {
	schema, err := f.schemas.Get(schemaName)
	if err != nil {
		return nil, err
	}

	var tools []registry.Tool
	if len(cfg.Tools) > 0 {
		if f.tools == nil {
			return nil, fmt.Errorf("agent: %s names tools but no tool registry is configured", cfg.Name)
		}
		tools, err = f.tools.Resolve(cfg.Tools)
		if err != nil {
			return nil, err
		}
	}

	client, err := f.clients(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("agent: build client for %s: %w", cfg.Name, err)
	}

	h := NewHarness(client)
	if err := h.Initialize(Config{Agent: cfg, Schema: schema, Tools: tools, Meta: f.meta}); err != nil {
		return nil, err
	}
	return h, nil
}

// Clear drops all cached harnesses. Subsequent Gets rebuild.
func (f *Factory) Clear() {
	f.mu.Lock()
	f.cache = make(map[string]*Harness)
	f.mu.Unlock()
}

// Len reports the number of cached harnesses.
func (f *Factory) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

// BuildPool returns a pool of size harness slots for one agent
// configuration. maxParallel overrides the concurrency bound; nil or
// non-positive means the pool size.
func (f *Factory) BuildPool(cfg model.AgentConfig, schemaName string, size int, maxParallel *int) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("agent: pool size must be positive, got %d", size)
	}
	instances := make([]*Harness, size)
	for i := range instances {
		h, err := f.Get(cfg, schemaName)
		if err != nil {
			return nil, err
		}
		instances[i] = h
	}
	bound := size
	if maxParallel != nil && *maxParallel > 0 {
		bound = *maxParallel
	}
	return NewPool(instances, bound), nil
}
