package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateStatus indicates two steps of a workflow share a status label.
	ErrDuplicateStatus = errors.New("duplicate step status")

	// ErrDanglingTransition indicates a transition references a step that is not part of its workflow.
	ErrDanglingTransition = errors.New("transition references unknown step")
)

// Graph is an immutable, query-scoped view of one workflow. Steps live in an
// arena addressed by integer index; transitions are indexed by the arena
// index of their source step, so looking up the edges leaving a step costs
// O(out-degree).
type Graph struct {
	workflow    *Workflow
	steps       []*WorkflowStep
	transitions []*WorkflowTransition
	byID        map[string]int
	byStatus    map[string]int
	outgoing    [][]int
	targets     []int // transition index -> arena index of the destination step
}

// NewGraph builds the graph of a workflow definition. It fails when two steps
// share a status label or when a transition references a step that does not
// belong to the workflow; every problem found is reported.
func NewGraph(definition *WorkflowDefinition) (*Graph, error) {
	if definition == nil || definition.Workflow == nil {
		return nil, errors.New("workflow definition is empty")
	}

	graph := &Graph{
		workflow:    definition.Workflow,
		steps:       make([]*WorkflowStep, 0, len(definition.Steps)),
		transitions: make([]*WorkflowTransition, 0, len(definition.Transitions)),
		byID:        make(map[string]int, len(definition.Steps)),
		byStatus:    make(map[string]int, len(definition.Steps)),
	}

	var errs []error

	for _, step := range definition.Steps {
		if existing, ok := graph.byStatus[step.Status]; ok {
			errs = append(errs, fmt.Errorf("%w: %q used by steps %s and %s",
				ErrDuplicateStatus, step.Status, graph.steps[existing].ID, step.ID))

			continue
		}

		index := len(graph.steps)
		graph.steps = append(graph.steps, step)
		graph.byID[step.ID] = index
		graph.byStatus[step.Status] = index
	}

	graph.outgoing = make([][]int, len(graph.steps))
	graph.targets = make([]int, 0, len(definition.Transitions))

	for _, transition := range definition.Transitions {
		from, fromOK := graph.byID[transition.FromStepID]
		to, toOK := graph.byID[transition.ToStepID]

		if !fromOK || !toOK || transition.WorkflowID != definition.Workflow.ID {
			errs = append(errs, fmt.Errorf("%w: transition %s (%s -> %s)",
				ErrDanglingTransition, transition.ID, transition.FromStepID, transition.ToStepID))

			continue
		}

		index := len(graph.transitions)
		graph.transitions = append(graph.transitions, transition)
		graph.targets = append(graph.targets, to)
		graph.outgoing[from] = append(graph.outgoing[from], index)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return graph, nil
}

// Workflow returns the workflow the graph was built from.
func (g *Graph) Workflow() *Workflow {
	return g.workflow
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Step returns the step stored at the given arena index.
func (g *Graph) Step(index int) *WorkflowStep {
	return g.steps[index]
}

// StepByStatus returns the arena index of the step carrying the status label.
func (g *Graph) StepByStatus(status string) (int, bool) {
	index, ok := g.byStatus[status]

	return index, ok
}

// StepByID returns the arena index of the step with the given id.
func (g *Graph) StepByID(id string) (int, bool) {
	index, ok := g.byID[id]

	return index, ok
}

// Outgoing returns the transitions leaving the step at the given index, in
// definition order.
func (g *Graph) Outgoing(step int) []*WorkflowTransition {
	edges := g.outgoing[step]
	result := make([]*WorkflowTransition, 0, len(edges))

	for _, edge := range edges {
		result = append(result, g.transitions[edge])
	}

	return result
}

// Edges returns the transitions from one step to another in definition order.
// Stores written through the service hold at most one.
func (g *Graph) Edges(from, to int) []*WorkflowTransition {
	var result []*WorkflowTransition

	for _, edge := range g.outgoing[from] {
		if g.targets[edge] == to {
			result = append(result, g.transitions[edge])
		}
	}

	return result
}

// Target returns the destination step of a transition that belongs to the graph.
func (g *Graph) Target(transition *WorkflowTransition) *WorkflowStep {
	index, ok := g.byID[transition.ToStepID]
	if !ok {
		return nil
	}

	return g.steps[index]
}

// Initial returns the arena indexes of the steps marked as initial.
func (g *Graph) Initial() []int {
	var initial []int

	for index, step := range g.steps {
		if step.IsInitial {
			initial = append(initial, index)
		}
	}

	return initial
}

// Reachable returns, for every arena index, whether the step can be reached
// from any of the given start steps.
func (g *Graph) Reachable(start ...int) []bool {
	visited := make([]bool, len(g.steps))
	queue := append([]int(nil), start...)

	for _, index := range start {
		visited[index] = true
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range g.outgoing[current] {
			next := g.targets[edge]
			if visited[next] {
				continue
			}

			visited[next] = true
			queue = append(queue, next)
		}
	}

	return visited
}
