package api

import (
	"fmt"
)

// Graph is the static topology of an application: its actions, the ordered
// guarded transitions between them, and the entrypoint. A Graph is immutable
// once built and is shared read-only by every Application derived from it,
// including parallel child executions.
//
// Graphs may contain cycles; only reachability from the entrypoint is
// required.
type Graph struct {
	actions     map[string]Action
	order       []string
	transitions []Transition
	entrypoint  string
}

// NewGraph validates and builds a Graph. All cross-reference checks happen
// here, not at run time: duplicate or empty action names, transitions whose
// endpoints are unknown, a missing entrypoint, actions unreachable from the
// entrypoint, and default conditions that are not declared last among an
// action's outgoing transitions are all rejected.
func NewGraph(actions []Action, transitions []Transition, entrypoint string) (*Graph, error) {
	g := &Graph{
		actions:     make(map[string]Action, len(actions)),
		order:       make([]string, 0, len(actions)),
		transitions: append([]Transition(nil), transitions...),
		entrypoint:  entrypoint,
	}

	for _, a := range actions {
		if a == nil {
			return nil, fmt.Errorf("graph: nil action")
		}
		name := a.Name()
		if name == "" {
			return nil, fmt.Errorf("graph: action with empty name")
		}
		if _, dup := g.actions[name]; dup {
			return nil, fmt.Errorf("graph: duplicate action %q", name)
		}
		g.actions[name] = a
		g.order = append(g.order, name)
	}

	if entrypoint == "" {
		return nil, fmt.Errorf("graph: entrypoint not set")
	}
	if _, ok := g.actions[entrypoint]; !ok {
		return nil, fmt.Errorf("graph: entrypoint %q is not an action", entrypoint)
	}

	// Endpoint checks plus the default-last rule, per source action.
	defaultSeen := make(map[string]bool)
	for _, t := range g.transitions {
		if len(t.From) == 0 {
			return nil, fmt.Errorf("graph: transition to %q has no source", t.To)
		}
		if _, ok := g.actions[t.To]; !ok {
			return nil, fmt.Errorf("graph: transition targets unknown action %q", t.To)
		}
		for _, from := range t.From {
			if _, ok := g.actions[from]; !ok {
				return nil, fmt.Errorf("graph: transition from unknown action %q", from)
			}
			if defaultSeen[from] {
				return nil, fmt.Errorf("graph: action %q has transitions after its default; the default must be last", from)
			}
			if t.Condition.IsDefault() {
				defaultSeen[from] = true
			}
		}
	}

	if unreachable := g.unreachable(); len(unreachable) > 0 {
		return nil, fmt.Errorf("graph: actions unreachable from entrypoint %q: %v", entrypoint, unreachable)
	}

	return g, nil
}

// Action returns the named action, if present.
func (g *Graph) Action(name string) (Action, bool) {
	a, ok := g.actions[name]
	return a, ok
}

// Actions returns the actions in declaration order.
func (g *Graph) Actions() []Action {
	out := make([]Action, len(g.order))
	for i, name := range g.order {
		out[i] = g.actions[name]
	}
	return out
}

// Transitions returns the transitions in declaration order.
func (g *Graph) Transitions() []Transition {
	return append([]Transition(nil), g.transitions...)
}

// Entrypoint returns the name of the entry action.
func (g *Graph) Entrypoint() string { return g.entrypoint }

// Outgoing returns the transitions whose source set includes name, in
// declaration order.
func (g *Graph) Outgoing(name string) []Transition {
	var out []Transition
	for _, t := range g.transitions {
		if t.hasSource(name) {
			out = append(out, t)
		}
	}
	return out
}

// Resolve picks the successor of the named action for the given state.
// Conditions are evaluated in declaration order and the first match wins,
// so resolution is deterministic for a fixed state. If no outgoing
// transition exists at all, ok is false: the action is terminal. If
// transitions exist but none matches, a *NoTransitionError is returned.
func (g *Graph) Resolve(from string, s State) (to string, ok bool, err error) {
	outgoing := g.Outgoing(from)
	if len(outgoing) == 0 {
		return "", false, nil
	}
	for _, t := range outgoing {
		match, err := t.Condition.Eval(s)
		if err != nil {
			return "", false, fmt.Errorf("condition %q on %s->%s: %w", t.Condition.Name(), from, t.To, err)
		}
		if match {
			return t.To, true, nil
		}
	}
	return "", false, &NoTransitionError{From: from}
}

// unreachable returns action names not reachable from the entrypoint by
// following transitions.
func (g *Graph) unreachable() []string {
	seen := map[string]bool{g.entrypoint: true}
	queue := []string{g.entrypoint}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, t := range g.Outgoing(current) {
			if !seen[t.To] {
				seen[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}
	var missing []string
	for _, name := range g.order {
		if !seen[name] {
			missing = append(missing, name)
		}
	}
	return missing
}
