// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

// Package tools defines the closed set of capabilities the agent can
// invoke and the registry that resolves them by name.
package tools

import (
	"context"
	"fmt"

	"github.com/jllopis/gnosis/pkg/llm"
)

// Tool is one agent capability.
//
// Call takes the raw JSON argument string from the model and always
// returns text: tools convert every failure, including argument
// validation and upstream faults, into a descriptive message instead of
// raising, so the agent loop can feed the outcome back to the model.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Call(ctx context.Context, args string) string
}

// Registry is the fixed tool set assembled at startup. Tools are
// registered once at construction; there is no runtime mutation.
type Registry struct {
	order  []Tool
	byName map[string]Tool
}

// NewRegistry builds a registry from the given tools. Registering two
// tools with the same name is a programming error and panics.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		name := tool.Name()
		if _, dup := r.byName[name]; dup {
			panic(fmt.Sprintf("tools: duplicate tool %q", name))
		}
		r.byName[name] = tool
		r.order = append(r.order, tool)
	}
	return r
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

// Names lists tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, tool := range r.order {
		names[i] = tool.Name()
	}
	return names
}

// Definitions renders the registry as model-facing tool declarations,
// in registration order.
func (r *Registry) Definitions() []llm.Tool {
	defs := make([]llm.Tool, len(r.order))
	for i, tool := range r.order {
		defs[i] = llm.Tool{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Parameters(),
			},
		}
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }
