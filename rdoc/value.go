package rdoc

import "math"

// Value is the payload type of document leaves: nil, bool, string, []byte,
// int64, uint64, float64, []Value and map[string]Value after normalization.
// Values decoded from updates come back in the same shapes.
type Value = any

// normalize converts a caller-provided value into canonical leaf shape,
// copying composites so later caller mutations cannot reach document state.
func normalize(v any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case bool, string, int64, float64:
		return v
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return normUint(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return normUint(v)
	case float32:
		return float64(v)
	case []byte:
		c := make([]byte, len(v))
		copy(c, v)
		return c
	case []any:
		c := make([]any, len(v))
		for i, e := range v {
			c[i] = normalize(e)
		}
		return c
	case map[string]any:
		c := make(map[string]any, len(v))
		for k, e := range v {
			c[k] = normalize(e)
		}
		return c
	default:
		return v
	}
}

func normUint(v uint64) any {
	if v <= math.MaxInt64 {
		return int64(v)
	}
	return v
}
