// Package condition implements the pure condition evaluator used to gate
// workflow steps. Evaluation is total: it never panics and never returns an
// error; anything that cannot be resolved or compared degrades to false.
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/treline/relay/pkg/schema"
)

// Evaluate resolves cond.Field against data and applies cond.Operator.
// A nil condition is implicitly true. Unknown operators are false.
func Evaluate(cond *schema.Condition, data map[string]any) bool {
	if cond == nil {
		return true
	}

	fieldValue, found := Lookup(data, cond.Field)

	switch cond.Operator {
	case schema.OpEquals:
		if !found {
			return false
		}
		return equalValues(fieldValue, cond.Value)

	case schema.OpContains:
		return strings.Contains(
			strings.ToLower(stringify(fieldValue)),
			strings.ToLower(stringify(cond.Value)),
		)

	case schema.OpGreaterThan:
		fv, ok1 := toNumber(fieldValue)
		cv, ok2 := toNumber(cond.Value)
		return ok1 && ok2 && fv > cv

	case schema.OpLessThan:
		fv, ok1 := toNumber(fieldValue)
		cv, ok2 := toNumber(cond.Value)
		return ok1 && ok2 && fv < cv

	case schema.OpIn:
		if !found {
			return false
		}
		values, ok := cond.Value.([]any)
		if !ok {
			return false
		}
		for _, v := range values {
			if equalValues(fieldValue, v) {
				return true
			}
		}
		return false
	}

	return false
}

// Lookup walks data along a dotted path ("changes.stage"). A missing or
// non-object intermediate yields (nil, false), never an error.
func Lookup(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	var current any = data
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// equalValues compares two JSON-shaped scalars. Numbers compare numerically
// regardless of concrete Go type; mismatched kinds are unequal.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

// toFloat converts numeric Go types to float64 without coercing strings.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toNumber applies ordering-comparison coercion: numeric types pass through
// and numeric-looking strings parse; everything else fails the comparison.
func toNumber(v any) (float64, bool) {
	if f, ok := toFloat(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// stringify renders a value for substring comparison. Absent values render
// as the empty string.
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}
