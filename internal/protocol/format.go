package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// FormatValue renders a guest result value for display.
//
// Numeric edge cases render as their literal tokens (NaN, Infinity,
// -Infinity) rather than a generic placeholder. Composite values are
// serialized as indented JSON; values that cannot be serialized fall back to
// a type-tag placeholder such as [Function] or [Object].
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatFloat(val)
	case float32:
		return formatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.RawMessage:
		return string(val)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return typeTag(v)
	}
	return string(b)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// typeTag mirrors the placeholder a JS console would print for a value that
// resists serialization.
func typeTag(v any) string {
	switch fmt.Sprintf("%T", v) {
	case "func()", "goja.Callable":
		return "[Function]"
	}
	return "[Object]"
}
