// Package plan decomposes a goal into dependency-ordered subtasks and
// executes them as independent runs, respecting dependencies and failing
// dependents of failed subtasks without running them.
package plan

import (
	"fmt"

	"github.com/agentfactory/loopkit/internal/schema"
)

// Plan is an ordered set of subtasks with dependency edges between them.
type Plan struct {
	Goal     string
	Subtasks []schema.Subtask
}

// Validate checks structural soundness: unique IDs, known dependencies and
// no dependency cycles.
func (p *Plan) Validate() error {
	if len(p.Subtasks) == 0 {
		return fmt.Errorf("plan has no subtasks")
	}
	byID := make(map[string]*schema.Subtask, len(p.Subtasks))
	for i := range p.Subtasks {
		st := &p.Subtasks[i]
		if st.ID == "" {
			return fmt.Errorf("subtask %d has empty id", i)
		}
		if _, dup := byID[st.ID]; dup {
			return fmt.Errorf("duplicate subtask id %q", st.ID)
		}
		byID[st.ID] = st
	}
	for _, st := range p.Subtasks {
		for _, dep := range st.Dependencies {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("subtask %q depends on unknown subtask %q", st.ID, dep)
			}
			if dep == st.ID {
				return fmt.Errorf("subtask %q depends on itself", st.ID)
			}
		}
	}
	return p.checkCycles(byID)
}

// checkCycles runs a coloring DFS over the dependency edges.
func (p *Plan) checkCycles(byID map[string]*schema.Subtask) error {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // finished
	)
	color := make(map[string]int, len(p.Subtasks))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("dependency cycle through subtask %q", id)
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, st := range p.Subtasks {
		if err := visit(st.ID); err != nil {
			return err
		}
	}
	return nil
}

// Subtask returns the subtask with the given id, or nil.
func (p *Plan) Subtask(id string) *schema.Subtask {
	for i := range p.Subtasks {
		if p.Subtasks[i].ID == id {
			return &p.Subtasks[i]
		}
	}
	return nil
}
