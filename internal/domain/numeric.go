package domain

import (
	"encoding/json"
	"math"
	"strconv"
)

// AsFiniteNumber coerces an upstream value to a finite float64.
// Upstream payloads mix numbers and numeric strings; this is the single
// coercion point for every ingest boundary. Non-finite values, malformed
// strings, and unsupported types report ok=false.
func AsFiniteNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, false
		}
		return finite(f)
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	default:
		return 0, false
	}
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
