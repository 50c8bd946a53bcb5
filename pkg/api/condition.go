package api

import (
	"fmt"
	"reflect"
	"strings"
)

// Condition is a guard predicate over State deciding transition eligibility.
// Conditions declare the fields they read; referencing a field absent from
// the state at evaluation time fails with *KeyNotFoundError.
type Condition struct {
	name      string
	fields    []string
	isDefault bool
	eval      func(State) (bool, error)
}

// Default returns the catch-all condition that always matches. Within an
// action's outgoing transitions it must be declared last; Build rejects
// graphs where a default shadows later transitions.
func Default() Condition {
	return Condition{
		name:      "default",
		isDefault: true,
		eval:      func(State) (bool, error) { return true, nil },
	}
}

// When matches when the field holds a value deeply equal to want.
func When(field string, want any) Condition {
	return Condition{
		name:   fmt.Sprintf("%s=%v", field, want),
		fields: []string{field},
		eval: func(s State) (bool, error) {
			got, err := s.Get(field)
			if err != nil {
				return false, err
			}
			return reflect.DeepEqual(got, want), nil
		},
	}
}

// Expr builds a condition from an arbitrary predicate over the listed
// fields. Every listed field must be present at evaluation time; the
// predicate receives the full state but should only inspect its declared
// fields.
func Expr(name string, fields []string, fn func(State) (bool, error)) Condition {
	if fn == nil {
		panic(fmt.Sprintf("skein: condition %q has nil predicate", name))
	}
	return Condition{
		name:   name,
		fields: append([]string(nil), fields...),
		eval: func(s State) (bool, error) {
			for _, f := range fields {
				if !s.Has(f) {
					return false, &KeyNotFoundError{Key: f}
				}
			}
			return fn(s)
		},
	}
}

// And matches when all conditions match. Evaluation short-circuits.
func And(conds ...Condition) Condition {
	return combine("and", conds, func(s State) (bool, error) {
		for _, c := range conds {
			ok, err := c.Eval(s)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	})
}

// Or matches when at least one condition matches. Evaluation short-circuits.
func Or(conds ...Condition) Condition {
	return combine("or", conds, func(s State) (bool, error) {
		for _, c := range conds {
			ok, err := c.Eval(s)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	})
}

// Not inverts a condition.
func Not(c Condition) Condition {
	return Condition{
		name:   "not(" + c.name + ")",
		fields: c.fields,
		eval: func(s State) (bool, error) {
			ok, err := c.Eval(s)
			return !ok, err
		},
	}
}

func combine(op string, conds []Condition, eval func(State) (bool, error)) Condition {
	names := make([]string, len(conds))
	var fields []string
	for i, c := range conds {
		names[i] = c.name
		fields = append(fields, c.fields...)
	}
	return Condition{
		name:   op + "(" + strings.Join(names, ", ") + ")",
		fields: fields,
		eval:   eval,
	}
}

// Eval evaluates the condition against a state.
func (c Condition) Eval(s State) (bool, error) {
	if c.eval == nil {
		// Zero value behaves as the default condition, matching the
		// convention that an unguarded transition always fires.
		return true, nil
	}
	return c.eval(s)
}

// Name returns a human-readable label for tracking and errors.
func (c Condition) Name() string {
	if c.eval == nil {
		return "default"
	}
	return c.name
}

// Fields lists the state fields the condition reads.
func (c Condition) Fields() []string { return c.fields }

// IsDefault reports whether this is the catch-all condition. The zero
// Condition value counts as default.
func (c Condition) IsDefault() bool { return c.isDefault || c.eval == nil }

// Transition is a directed, conditionally guarded edge between actions.
// From may name several predecessors; the edge applies from any of them.
type Transition struct {
	From      []string
	To        string
	Condition Condition
}

// NewTransition builds a single-source transition.
func NewTransition(from, to string, cond Condition) Transition {
	return Transition{From: []string{from}, To: to, Condition: cond}
}

// NewMultiTransition builds a transition that applies from any of the named
// predecessors.
func NewMultiTransition(from []string, to string, cond Condition) Transition {
	return Transition{From: append([]string(nil), from...), To: to, Condition: cond}
}

func (t Transition) hasSource(name string) bool {
	for _, f := range t.From {
		if f == name {
			return true
		}
	}
	return false
}
