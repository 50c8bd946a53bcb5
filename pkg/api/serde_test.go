package api

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

func timeSerde() FieldSerde {
	return SerdeFuncs{
		TagName: "rfc3339",
		Ser: func(v any) (any, error) {
			ts, ok := v.(time.Time)
			if !ok {
				return nil, fmt.Errorf("expected time.Time, got %T", v)
			}
			return ts.UTC().Format(time.RFC3339Nano), nil
		},
		De: func(payload any) (any, error) {
			s, ok := payload.(string)
			if !ok {
				return nil, fmt.Errorf("expected string payload, got %T", payload)
			}
			return time.Parse(time.RFC3339Nano, s)
		},
	}
}

func TestSerdeRoundTrip(t *testing.T) {
	reg := NewSerdeRegistry().Register("created_at", timeSerde())

	created := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	s := NewState(map[string]any{
		"created_at": created,
		"plain":      "value",
	})

	raw, err := s.Serialize(reg)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}

	// The serialized form must survive a JSON round-trip; that is the whole
	// point of registering a serde for time.Time.
	encoded, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("json.Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("json.Unmarshal failed: %v", err)
	}

	restored, err := DeserializeState(decoded, reg)
	if err != nil {
		t.Fatalf("DeserializeState failed: %v", err)
	}

	got, err := restored.Get("created_at")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !created.Equal(got.(time.Time)) {
		t.Fatalf("expected %v, got %v", created, got)
	}
	if v, _ := restored.Get("plain"); v != "value" {
		t.Fatalf("untagged field should pass through, got %v", v)
	}
}

func TestSerdeNilRegistryPassthrough(t *testing.T) {
	s := NewState(map[string]any{"a": 1, "b": "x"})

	raw, err := s.Serialize(nil)
	if err != nil {
		t.Fatalf("Serialize with nil registry failed: %v", err)
	}
	restored, err := DeserializeState(raw, nil)
	if err != nil {
		t.Fatalf("DeserializeState with nil registry failed: %v", err)
	}
	if v, _ := restored.Get("b"); v != "x" {
		t.Fatalf("expected passthrough b=x, got %v", v)
	}
}

func TestSerdeUnknownTagFails(t *testing.T) {
	reg := NewSerdeRegistry()

	_, err := reg.Deserialize(map[string]any{
		"field": map[string]any{serdeTagKey: "ghost", "value": 1},
	})
	if err == nil {
		t.Fatal("expected error for unregistered tag")
	}
}

func TestSerdeSharedAcrossFields(t *testing.T) {
	ts := timeSerde()
	reg := NewSerdeRegistry().Register("started", ts).Register("finished", ts)

	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	finished := started.Add(time.Hour)
	s := NewState(map[string]any{"started": started, "finished": finished})

	raw, err := s.Serialize(reg)
	if err != nil {
		t.Fatalf("Serialize failed: %v", err)
	}
	restored, err := DeserializeState(raw, reg)
	if err != nil {
		t.Fatalf("DeserializeState failed: %v", err)
	}

	got, _ := restored.Get("finished")
	if !finished.Equal(got.(time.Time)) {
		t.Fatalf("expected %v, got %v", finished, got)
	}
}

func TestSerdeNilSerdePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering a nil serde")
		}
	}()
	NewSerdeRegistry().Register("a", nil)
}
