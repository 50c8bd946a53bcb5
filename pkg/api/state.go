package api

import (
	"fmt"
	"sort"
)

// State is the immutable, versioned key-value context threaded through an
// application. Every mutating operation returns a new State value and leaves
// the receiver untouched, so a State handed to an action can never observe
// writes made elsewhere.
//
// The zero value is an empty, usable State.
type State struct {
	data    map[string]any
	version int64
}

// NewState creates a State holding a copy of the given fields.
func NewState(fields map[string]any) State {
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}
	return State{data: data}
}

// Get returns the value stored under key. If the key is absent it returns
// a *KeyNotFoundError.
func (s State) Get(key string) (any, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, &KeyNotFoundError{Key: key}
	}
	return v, nil
}

// GetDefault returns the value stored under key, or def if the key is absent.
func (s State) GetDefault(key string, def any) any {
	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is present.
func (s State) Has(key string) bool {
	_, ok := s.data[key]
	return ok
}

// Keys returns the sorted field names present in the state.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of fields.
func (s State) Len() int {
	return len(s.data)
}

// Version returns the internal monotonic version marker. It increases by one
// with every mutating operation and can be used for optimistic concurrency
// checks by collaborators.
func (s State) Version() int64 {
	return s.version
}

// Update returns a new State with the given fields overwritten or added.
// Fields not listed are carried over unchanged.
func (s State) Update(fields map[string]any) State {
	next := s.clone()
	for k, v := range fields {
		next.data[k] = v
	}
	return next
}

// Set returns a new State with a single field overwritten or added.
func (s State) Set(key string, value any) State {
	next := s.clone()
	next.data[key] = value
	return next
}

// Append treats key as an ordered sequence and returns a new State with the
// values appended. If the key is absent an empty sequence is created first.
// It returns an error if the existing value is not a slice.
func (s State) Append(key string, values ...any) (State, error) {
	existing, ok := s.data[key]
	var seq []any
	if ok {
		typed, isSlice := existing.([]any)
		if !isSlice {
			return s, fmt.Errorf("state: field %q holds %T, not a sequence", key, existing)
		}
		// Copy so the receiver's slice is never shared with the result.
		seq = make([]any, len(typed), len(typed)+len(values))
		copy(seq, typed)
	} else {
		seq = make([]any, 0, len(values))
	}
	seq = append(seq, values...)

	next := s.clone()
	next.data[key] = seq
	return next, nil
}

// Remove returns a new State with the given keys deleted. Absent keys are
// ignored.
func (s State) Remove(keys ...string) State {
	next := s.clone()
	for _, k := range keys {
		delete(next.data, k)
	}
	return next
}

// Merge returns a new State holding the right-biased union of both states:
// fields present in other win over fields present in s.
func (s State) Merge(other State) State {
	next := s.clone()
	for k, v := range other.data {
		next.data[k] = v
	}
	return next
}

// Subset returns a projection containing only the listed keys. Absent keys
// are skipped. The projection carries the receiver's version so delta checks
// against it remain meaningful.
func (s State) Subset(keys ...string) State {
	data := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			data[k] = v
		}
	}
	return State{data: data, version: s.version}
}

// All returns a copy of the underlying mapping.
func (s State) All() map[string]any {
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Serialize converts the state to a plain nested-value mapping using the
// given registry. A nil registry serializes every field verbatim.
func (s State) Serialize(reg *SerdeRegistry) (map[string]any, error) {
	return reg.Serialize(s)
}

// DeserializeState rebuilds a State from a mapping produced by Serialize.
func DeserializeState(raw map[string]any, reg *SerdeRegistry) (State, error) {
	return reg.Deserialize(raw)
}

func (s State) clone() State {
	data := make(map[string]any, len(s.data)+1)
	for k, v := range s.data {
		data[k] = v
	}
	return State{data: data, version: s.version + 1}
}

func (s State) String() string {
	return fmt.Sprintf("State(v%d)%v", s.version, s.data)
}
