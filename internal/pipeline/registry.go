package pipeline

import (
	"fmt"
	"sort"
)

// Tool is anything a role may be bound to by name.
type Tool interface {
	Name() string
}

// Registry maps tool names to the adapters constructed for this process.
type Registry struct{ tools map[string]Tool }

func NewRegistry() *Registry { return &Registry{tools: map[string]Tool{}} }

func (r *Registry) Register(tool Tool) { r.tools[tool.Name()] = tool }

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Bind resolves the tool names a role declares. Unknown names are configuration errors.
func (r *Registry) Bind(roleName string, toolNames []string) ([]Tool, error) {
	bound := make([]Tool, 0, len(toolNames))
	for _, toolName := range toolNames {
		tool, ok := r.tools[toolName]
		if !ok {
			return nil, MalformedSetting(fmt.Sprintf("roles.%s.tools", roleName), fmt.Errorf("unknown tool %q", toolName))
		}
		bound = append(bound, tool)
	}
	return bound, nil
}
