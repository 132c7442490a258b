package core

import "encoding/json"

// TextCodec implements the property coercion hooks of stores without native
// structured types: objects are stored as JSON text.
type TextCodec struct{}

// ValueToProperty decodes a stored value. Object properties are parsed from
// JSON text; malformed text yields nil instead of an error. Values the store
// client already decoded (maps, slices) are returned as they are.
func (TextCodec) ValueToProperty(value any, property Property) any {
	switch property.Type {
	case TypeObject:
		var raw []byte
		switch v := value.(type) {
		case nil:
			return nil
		case string:
			raw = []byte(v)
		case []byte:
			raw = v
		default:
			return value
		}
		var out any
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil
		}
		return out
	default:
		return value
	}
}

// PropertyToValue encodes a property value for storage. Object properties
// are serialized to JSON text.
func (TextCodec) PropertyToValue(value any, property Property) (any, error) {
	switch property.Type {
	case TypeObject:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, &CoercionError{Value: value, Cause: err}
		}
		return string(raw), nil
	default:
		return value, nil
	}
}

// NativeCodec implements the coercion hooks of stores that keep structured
// values natively: values pass through untouched.
type NativeCodec struct{}

// ValueToProperty returns value unchanged.
func (NativeCodec) ValueToProperty(value any, _ Property) any { return value }

// PropertyToValue returns value unchanged.
func (NativeCodec) PropertyToValue(value any, _ Property) (any, error) { return value, nil }
