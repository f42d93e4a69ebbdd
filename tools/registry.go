// Package tools provides tool management and registration.
//
// Information Hiding:
// - Tool storage and lookup implementation hidden
// - Argument schema validation hidden behind Validate
// - Registration and discovery mechanisms abstracted

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"

	"github.com/richinex/tempo/llm"
)

// Violation describes one way a tool call's arguments break the tool's
// parameter schema.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Registry manages available tools with dynamic registration. Each tool's
// parameter schema is compiled once at registration time.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
	}
}

// Register adds a new tool to the registry and compiles its parameter
// schema. Returns error if a tool with the same name already exists or
// the schema does not compile.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	meta := tool.Metadata()
	if _, exists := r.tools[meta.Name]; exists {
		return fmt.Errorf("tool '%s' already registered", meta.Name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(meta.Parameters))
	if err != nil {
		return fmt.Errorf("tool '%s' has invalid parameter schema: %w", meta.Name, err)
	}

	r.tools[meta.Name] = tool
	r.schemas[meta.Name] = schema
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	return tool, exists
}

// Has checks if a tool exists in the registry.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// Names returns all registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions to advertise to the model,
// in sorted name order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		meta := r.tools[name].Metadata()
		defs = append(defs, llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.Parameters,
		})
	}
	return defs
}

// Validate checks raw arguments against the named tool's parameter
// schema. It returns every violation found, not just the first, so the
// model gets a complete picture of what to fix.
func (r *Registry) Validate(name string, args json.RawMessage) ([]Violation, error) {
	r.mu.RLock()
	schema, exists := r.schemas[name]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown tool '%s'", name)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return []Violation{{Field: "$", Message: "arguments are not valid JSON"}}, nil
	}

	if result.Valid() {
		return nil, nil
	}
	violations := make([]Violation, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, Violation{
			Field:   e.Field(),
			Message: e.Description(),
		})
	}
	return violations, nil
}

// Execute validates and runs the named tool. Unknown tools and schema
// violations come back as failed ToolResults so the caller can feed them
// to the model unchanged.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, env *ExecutionContext) ToolResult {
	tool, exists := r.Get(name)
	if !exists {
		return FailureResultf("unknown tool '%s'", name)
	}

	violations, err := r.Validate(name, args)
	if err != nil {
		return FailureResult(err)
	}
	if len(violations) > 0 {
		for _, v := range violations {
			log.Warn().
				Str("tool", name).
				Str("field", v.Field).
				Str("reason", v.Message).
				Msg("tool arguments rejected")
		}
		return FailureResultf("invalid arguments for '%s': %s", name, formatViolations(violations))
	}

	return tool.Execute(ctx, args, env)
}

func formatViolations(violations []Violation) string {
	out := ""
	for i, v := range violations {
		if i > 0 {
			out += "; "
		}
		out += v.String()
	}
	return out
}

// WithDefaults creates a registry with the built-in music tools.
// Returns error if any tool registration fails.
func WithDefaults(maxAlternatives int) (*Registry, error) {
	registry := NewRegistry()

	builtins := []Tool{
		NewAlternativesTool(maxAlternatives),
		NewPlaySongTool(),
	}

	for _, t := range builtins {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register default tools: %w", err)
		}
	}
	return registry, nil
}
