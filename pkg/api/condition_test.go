package api

import (
	"errors"
	"testing"
)

func TestWhenCondition(t *testing.T) {
	cond := When("status", "ready")

	ok, err := cond.Eval(NewState(map[string]any{"status": "ready"}))
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	ok, err = cond.Eval(NewState(map[string]any{"status": "pending"}))
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestWhenMissingField(t *testing.T) {
	cond := When("status", "ready")

	_, err := cond.Eval(NewState(nil))
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *KeyNotFoundError, got %v", err)
	}
}

func TestExprChecksDeclaredFields(t *testing.T) {
	cond := Expr("below", []string{"n"}, func(s State) (bool, error) {
		n, _ := s.Get("n")
		return n.(int) < 10, nil
	})

	ok, err := cond.Eval(NewState(map[string]any{"n": 5}))
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}

	_, err = cond.Eval(NewState(map[string]any{"other": 1}))
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected *KeyNotFoundError for undeclared field, got %v", err)
	}
}

func TestExprNilPredicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for nil predicate")
		}
	}()
	Expr("bad", nil, nil)
}

func TestConditionCombinators(t *testing.T) {
	s := NewState(map[string]any{"a": 1, "b": 2})

	isA := When("a", 1)
	isB := When("b", 99)

	if ok, _ := And(isA, Not(isB)).Eval(s); !ok {
		t.Fatal("expected and(a=1, not(b=99)) to match")
	}
	if ok, _ := Or(isB, isA).Eval(s); !ok {
		t.Fatal("expected or(b=99, a=1) to match")
	}
	if ok, _ := And(isA, isB).Eval(s); ok {
		t.Fatal("expected and(a=1, b=99) not to match")
	}
}

func TestDefaultCondition(t *testing.T) {
	if !Default().IsDefault() {
		t.Fatal("Default() should report IsDefault")
	}
	if ok, err := Default().Eval(NewState(nil)); err != nil || !ok {
		t.Fatalf("default should always match, got ok=%v err=%v", ok, err)
	}

	// The zero Condition behaves as default, so an unguarded Transition
	// literal always fires.
	var zero Condition
	if !zero.IsDefault() {
		t.Fatal("zero condition should count as default")
	}
	if ok, err := zero.Eval(NewState(nil)); err != nil || !ok {
		t.Fatalf("zero condition should match, got ok=%v err=%v", ok, err)
	}
	if zero.Name() != "default" {
		t.Fatalf("zero condition name = %q", zero.Name())
	}
}

func TestMultiTransitionSources(t *testing.T) {
	tr := NewMultiTransition([]string{"a", "b"}, "c", Default())

	if !tr.hasSource("a") || !tr.hasSource("b") {
		t.Fatal("expected both sources present")
	}
	if tr.hasSource("c") {
		t.Fatal("target should not count as source")
	}
}
