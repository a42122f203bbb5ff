package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the declared type of a parameter.
type Kind string

const (
	KindString      Kind = "string"
	KindInteger     Kind = "integer"
	KindNumber      Kind = "number"
	KindBoolean     Kind = "boolean"
	KindStringArray Kind = "array" // array<string>
	KindObject      Kind = "object"
)

// ParseKind converts a JSON Schema type name to a Kind.
func ParseKind(typeStr string) (Kind, error) {
	switch k := Kind(typeStr); k {
	case KindString, KindInteger, KindNumber, KindBoolean, KindStringArray, KindObject:
		return k, nil
	default:
		return "", fmt.Errorf("unsupported type: %s", typeStr)
	}
}

// CastStatus tells how a value was treated by TryCast.
type CastStatus int

const (
	// CastCoerced means the value conforms to the kind, possibly after conversion.
	CastCoerced CastStatus = iota
	// CastFallback means conversion failed and the raw value is passed through unchanged.
	CastFallback
	// CastFailed means there is no usable value at all (nil).
	CastFailed
)

func (s CastStatus) String() string {
	switch s {
	case CastCoerced:
		return "coerced"
	case CastFallback:
		return "fallback"
	case CastFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CastResult is the outcome of a lenient cast.
type CastResult struct {
	Value  any
	Status CastStatus
	Err    error // Why the cast fell back or failed
}

func coerced(v any) CastResult { return CastResult{Value: v, Status: CastCoerced} }

func fallback(raw any, format string, args ...any) CastResult {
	return CastResult{Value: raw, Status: CastFallback, Err: fmt.Errorf(format, args...)}
}

// TryCast converts value to the kind. It never errors: a value that cannot be
// converted is returned unchanged with CastFallback, and nil yields CastFailed.
func (k Kind) TryCast(value any) CastResult {
	if value == nil {
		return CastResult{Status: CastFailed, Err: fmt.Errorf("no value")}
	}
	switch k {
	case KindString:
		return castString(value)
	case KindInteger:
		return castInteger(value)
	case KindNumber:
		return castNumber(value)
	case KindBoolean:
		return castBoolean(value)
	case KindStringArray:
		return castStringArray(value)
	case KindObject:
		return castObject(value)
	default:
		return fallback(value, "unsupported kind %q", k)
	}
}

func castString(value any) CastResult {
	switch v := value.(type) {
	case string:
		return coerced(v)
	case json.Number:
		return coerced(v.String())
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return coerced(fmt.Sprint(v))
	case float32, float64:
		return coerced(strconv.FormatFloat(toFloat(v), 'f', -1, 64))
	default:
		return fallback(value, "cannot represent %T as string", value)
	}
}

// numericCleaner drops digit-group separators a model may emit ("1 000", "1_000").
var numericCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "_", "")

func castInteger(value any) CastResult {
	switch v := value.(type) {
	case int:
		return coerced(int64(v))
	case int8:
		return coerced(int64(v))
	case int16:
		return coerced(int64(v))
	case int32:
		return coerced(int64(v))
	case int64:
		return coerced(v)
	case uint, uint8, uint16, uint32, uint64:
		n, err := strconv.ParseInt(fmt.Sprint(v), 10, 64)
		if err != nil {
			return fallback(value, "integer overflow: %v", v)
		}
		return coerced(n)
	case float32, float64:
		f := toFloat(v)
		n, ok := wholeInt64(f)
		if !ok {
			return fallback(value, "not a whole number in int64 range: %v", f)
		}
		return coerced(n)
	case json.Number:
		res := castInteger(v.String())
		if res.Status != CastCoerced {
			res.Value = value
		}
		return res
	case string:
		s := numericCleaner.Replace(strings.TrimSpace(v))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return coerced(n)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			if n, ok := wholeInt64(f); ok {
				return coerced(n)
			}
		}
		return fallback(value, "not an integer: %q", v)
	default:
		return fallback(value, "expected integer, got %T", value)
	}
}

// wholeInt64 converts f when it is a whole number that int64 can hold.
// 2^63 itself is representable as a float64 but not as an int64.
func wholeInt64(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < -(1<<63) || f >= 1<<63 {
		return 0, false
	}
	return int64(f), true
}

func castNumber(value any) CastResult {
	switch v := value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return coerced(toFloat(v))
	case json.Number:
		return castNumber(v.String())
	case string:
		s := numericCleaner.Replace(strings.TrimSpace(v))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return fallback(value, "not a number: %q", v)
		}
		return coerced(f)
	default:
		return fallback(value, "expected number, got %T", value)
	}
}

func castBoolean(value any) CastResult {
	switch v := value.(type) {
	case bool:
		return coerced(v)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return coerced(true)
		case "false", "no", "0":
			return coerced(false)
		}
		return fallback(value, "not a boolean: %q", v)
	case int, int64, float64:
		switch toFloat(v) {
		case 1:
			return coerced(true)
		case 0:
			return coerced(false)
		}
		return fallback(value, "not a boolean: %v", v)
	default:
		return fallback(value, "expected boolean, got %T", value)
	}
}

func castStringArray(value any) CastResult {
	switch v := value.(type) {
	case []string:
		return coerced(append([]string(nil), v...))
	case []any:
		out := make([]string, 0, len(v))
		for i, elem := range v {
			res := castString(elem)
			if res.Status != CastCoerced {
				return fallback(value, "element %d: %v", i, res.Err)
			}
			out = append(out, res.Value.(string))
		}
		return coerced(out)
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "[") {
			var elems []any
			if err := json.Unmarshal([]byte(s), &elems); err != nil {
				return fallback(value, "malformed array: %v", err)
			}
			return castStringArray(elems)
		}
		out := []string{}
		for _, part := range strings.Split(s, ",") {
			part = strings.Trim(strings.TrimSpace(part), `'"`)
			if part != "" {
				out = append(out, part)
			}
		}
		return coerced(out)
	default:
		return fallback(value, "expected array, got %T", value)
	}
}

func castObject(value any) CastResult {
	switch v := value.(type) {
	case map[string]any:
		return coerced(v)
	case map[string]string:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = val
		}
		return coerced(out)
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &obj); err != nil || obj == nil {
			return fallback(value, "not a JSON object: %q", v)
		}
		return coerced(obj)
	default:
		return fallback(value, "expected object, got %T", value)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	default:
		return math.NaN()
	}
}
