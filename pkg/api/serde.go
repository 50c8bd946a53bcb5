package api

import "fmt"

// serdeTagKey marks a serialized payload as produced by a registered field
// serializer. The tag value selects the matching deserializer.
const serdeTagKey = "__skein_serde__"

// FieldSerde converts a single state field to and from a plain serializable
// payload. Serialize and Deserialize must round-trip. The tag discriminates
// payloads at deserialization time, so it must be unique within a registry.
type FieldSerde interface {
	Tag() string
	Serialize(value any) (any, error)
	Deserialize(payload any) (any, error)
}

// SerdeRegistry maps field names to their serializers. A nil registry is
// valid and performs no conversion.
type SerdeRegistry struct {
	byField map[string]FieldSerde
	byTag   map[string]FieldSerde
}

// NewSerdeRegistry creates an empty registry.
func NewSerdeRegistry() *SerdeRegistry {
	return &SerdeRegistry{
		byField: make(map[string]FieldSerde),
		byTag:   make(map[string]FieldSerde),
	}
}

// Register associates a serializer with a field name. A serde may be
// shared by several fields; serdes registered under the same tag must
// round-trip identically, since decoding routes by tag alone and the
// registry keeps the latest one.
func (r *SerdeRegistry) Register(field string, s FieldSerde) *SerdeRegistry {
	if s == nil {
		panic(fmt.Sprintf("skein: nil serde for field %q", field))
	}
	r.byField[field] = s
	r.byTag[s.Tag()] = s
	return r
}

// Serialize converts a State into a plain nested-value mapping suitable for
// persisters. Fields with a registered serde are wrapped in a tagged payload.
func (r *SerdeRegistry) Serialize(s State) (map[string]any, error) {
	out := make(map[string]any, s.Len())
	for k, v := range s.data {
		serde := r.lookupField(k)
		if serde == nil {
			out[k] = v
			continue
		}
		payload, err := serde.Serialize(v)
		if err != nil {
			return nil, fmt.Errorf("serialize field %q: %w", k, err)
		}
		out[k] = map[string]any{serdeTagKey: serde.Tag(), "value": payload}
	}
	return out, nil
}

// Deserialize rebuilds a State from the mapping produced by Serialize.
// Tagged payloads are routed to the serde registered under their tag.
func (r *SerdeRegistry) Deserialize(raw map[string]any) (State, error) {
	data := make(map[string]any, len(raw))
	for k, v := range raw {
		wrapper, ok := v.(map[string]any)
		if !ok {
			data[k] = v
			continue
		}
		tag, ok := wrapper[serdeTagKey].(string)
		if !ok {
			data[k] = v
			continue
		}
		serde := r.lookupTag(tag)
		if serde == nil {
			return State{}, fmt.Errorf("deserialize field %q: no serde registered for tag %q", k, tag)
		}
		value, err := serde.Deserialize(wrapper["value"])
		if err != nil {
			return State{}, fmt.Errorf("deserialize field %q: %w", k, err)
		}
		data[k] = value
	}
	return State{data: data}, nil
}

func (r *SerdeRegistry) lookupField(field string) FieldSerde {
	if r == nil {
		return nil
	}
	return r.byField[field]
}

func (r *SerdeRegistry) lookupTag(tag string) FieldSerde {
	if r == nil {
		return nil
	}
	return r.byTag[tag]
}

// SerdeFuncs adapts a pair of functions into a FieldSerde.
type SerdeFuncs struct {
	TagName string
	Ser     func(any) (any, error)
	De      func(any) (any, error)
}

func (f SerdeFuncs) Tag() string                          { return f.TagName }
func (f SerdeFuncs) Serialize(v any) (any, error)         { return f.Ser(v) }
func (f SerdeFuncs) Deserialize(payload any) (any, error) { return f.De(payload) }
