// Package tools implements the fixed set of deterministic operations the
// session state machine can fire: the onboarding question provider, the
// red-flag safety checker, the triage stepper, the nearest-service lookup,
// guided search, and the emergency responder. Tools never call each other
// and are only ever invoked by the state machine.
package tools

// Tool is the common surface every tool exposes for listing and transcripts.
type Tool interface {
	Name() string
	Description() string
}

// Registry holds the registered tools in registration order.
type Registry struct {
	names []string
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name()]; !ok {
		r.names = append(r.names, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns all registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.tools[name])
	}
	return out
}
