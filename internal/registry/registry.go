// Package registry provides the name-keyed tool and output-schema
// registries agents resolve against.
//
// Both registries are constructed once at startup and passed by
// injection; there is no package-level state. Registration is explicit
// and duplicate names are rejected, so initialization is deterministic
// regardless of call order within a name set.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Errors for registry operations.
var (
	ErrNotFound    = errors.New("registry: entry not found")
	ErrDuplicate   = errors.New("registry: name already registered")
	ErrInvalidName = errors.New("registry: invalid name: must be lowercase alphanumeric with underscores")
)

// namePattern validates tool and schema names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Tool is a named capability an agent may call during an invocation.
type Tool struct {
	Name        string
	Description string
	Invoke      func(ctx context.Context, args map[string]any) (any, error)
}

// Tools is the tool registry.
type Tools struct {
	mu     sync.RWMutex
	byName map[string]Tool
}

// NewTools creates an empty tool registry.
func NewTools() *Tools {
	return &Tools{byName: make(map[string]Tool)}
}

// Register adds a tool. The name must be valid and unused.
func (t *Tools) Register(tool Tool) error {
	if !namePattern.MatchString(tool.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, tool.Name)
	}
	if tool.Invoke == nil {
		return fmt.Errorf("registry: tool %q has no invoke function", tool.Name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[tool.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, tool.Name)
	}
	t.byName[tool.Name] = tool
	return nil
}

// Unregister removes a tool by name.
func (t *Tools) Unregister(name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.byName[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(t.byName, name)
	return nil
}

// Get returns the tool registered under name.
func (t *Tools) Get(name string) (Tool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tool, exists := t.byName[name]
	if !exists {
		return Tool{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return tool, nil
}

// Resolve maps a list of tool names to their registered tools, failing
// on the first unknown name. Used at harness construction so missing
// tools surface before any invocation.
func (t *Tools) Resolve(names []string) ([]Tool, error) {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tool, err := t.Get(name)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

// Names returns all registered tool names, sorted.
func (t *Tools) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.byName))
	for name := range t.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema is a named output contract: it decodes raw agent output into a
// typed value, rejecting output that does not satisfy the contract. The
// name doubles as the output-type identity for harness caching.
type Schema struct {
	Name   string
	Decode func(data []byte) (any, error)
}

// JSONSchema builds a Schema that decodes JSON into T and then applies
// validate when non-nil.
func JSONSchema[T any](name string, validate func(T) error) Schema {
	return Schema{
		Name: name,
		Decode: func(data []byte) (any, error) {
			var v T
			if err := json.Unmarshal(data, &v); err != nil {
				return nil, fmt.Errorf("decoding %s: %w", name, err)
			}
			if validate != nil {
				if err := validate(v); err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
			}
			return v, nil
		},
	}
}

// Schemas is the output-schema registry.
type Schemas struct {
	mu     sync.RWMutex
	byName map[string]Schema
}

// NewSchemas creates an empty schema registry.
func NewSchemas() *Schemas {
	return &Schemas{byName: make(map[string]Schema)}
}

// Register adds a schema. The name must be valid and unused.
func (s *Schemas) Register(schema Schema) error {
	if !namePattern.MatchString(schema.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, schema.Name)
	}
	if schema.Decode == nil {
		return fmt.Errorf("registry: schema %q has no decode function", schema.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[schema.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicate, schema.Name)
	}
	s.byName[schema.Name] = schema
	return nil
}

// Unregister removes a schema by name.
func (s *Schemas) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.byName, name)
	return nil
}

// Get returns the schema registered under name.
func (s *Schemas) Get(name string) (Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schema, exists := s.byName[name]
	if !exists {
		return Schema{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return schema, nil
}

// Names returns all registered schema names, sorted.
func (s *Schemas) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
