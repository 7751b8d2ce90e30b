package match

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
)

// Coercion helpers for resolved attribute values. JSON decoding yields
// float64 for numbers, so numeric coercion accepts the integer widths as
// well. A failed coercion is a non-match, never an error.

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asVersion(v any) (*semver.Version, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	version, err := semver.NewVersion(s)
	if err != nil {
		return nil, false
	}
	return version, true
}
