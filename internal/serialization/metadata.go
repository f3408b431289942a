package serialization

import (
	"math"
)

// nonFiniteKey tags a JSON object standing in for a NaN or infinite float,
// which JSON numbers cannot represent: {"$float": "NaN"}.
const nonFiniteKey = "$float"

// encodeMetadata returns v with every non-finite float replaced by its tagged
// form. Containers are copied only where a replacement happens.
func encodeMetadata(v any) any {
	switch v := v.(type) {
	case float64:
		return encodeFloat(v)
	case float32:
		return encodeFloat(float64(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = encodeMetadata(e)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = encodeMetadata(e)
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = encodeFloat(e)
		}
		return out
	case map[string]float64:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = encodeFloat(e)
		}
		return out
	default:
		return v
	}
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return map[string]any{nonFiniteKey: "NaN"}
	case math.IsInf(f, 1):
		return map[string]any{nonFiniteKey: "+Inf"}
	case math.IsInf(f, -1):
		return map[string]any{nonFiniteKey: "-Inf"}
	}
	return f
}

// decodeNonFinite recognizes the tagged form written by encodeFloat.
func decodeNonFinite(m map[string]any) (float64, bool) {
	if len(m) != 1 {
		return 0, false
	}
	s, ok := m[nonFiniteKey].(string)
	if !ok {
		return 0, false
	}
	switch s {
	case "NaN":
		return math.NaN(), true
	case "+Inf":
		return math.Inf(1), true
	case "-Inf":
		return math.Inf(-1), true
	}
	return 0, false
}
