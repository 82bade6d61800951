package tools

import "github.com/user/evinav/internal/catalog"

// TriageStepper advances one step through the triage graph.
type TriageStepper struct {
	cat *catalog.Catalog
}

// NewTriageStepper creates a stepper over the triage catalog.
func NewTriageStepper(cat *catalog.Catalog) *TriageStepper {
	return &TriageStepper{cat: cat}
}

func (s *TriageStepper) Name() string        { return "triage_step" }
func (s *TriageStepper) Description() string { return "Evaluate a triage answer against the current node" }

// Step evaluates message against the current node's transitions. It returns
// the target node and ok=true on a match, or ok=false when the input matches
// no pattern (the re-prompt signal). An unknown node id also returns
// ok=false so the machine re-prompts from the root instead of failing.
func (s *TriageStepper) Step(nodeID, message string) (*catalog.TriageNode, bool) {
	node, ok := s.cat.Node(nodeID)
	if !ok {
		return nil, false
	}
	target := node.Next(message)
	if target == "" {
		return nil, false
	}
	next, ok := s.cat.Node(target)
	if !ok {
		return nil, false
	}
	return next, true
}
