package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ConditionOp is the tagged variant of a routing-rule predicate operator.
// The on-disk format remains a key→object JSON map, parsed at load time
// into this typed variant rather than interpreted ad-hoc at match time.
type ConditionOp string

const (
	OpEquals      ConditionOp = "equals"
	OpNotEquals   ConditionOp = "not_equals"
	OpContains    ConditionOp = "contains"
	OpNotContains ConditionOp = "not_contains"
	OpIn          ConditionOp = "in"
	OpNotIn       ConditionOp = "not_in"
	OpGreaterThan ConditionOp = "greater_than"
	OpLessThan    ConditionOp = "less_than"
	OpRegex       ConditionOp = "regex"
)

// Condition is one field's predicate within a RoutingRule's conjunction.
type Condition struct {
	Op    ConditionOp
	Value interface{}
}

// rawCondition is either a bare scalar (implicit equality) or an object
// of the shape {"operator": "...", "value": ...}.
type rawCondition struct {
	Operator string      `json:"operator"`
	Value    interface{} `json:"value"`
}

// ParseConditions decodes a rule's raw JSON conditions map into typed
// Conditions, field→Condition.
func ParseConditions(raw json.RawMessage) (map[string]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parse conditions: %w", err)
	}
	out := make(map[string]Condition, len(generic))
	for field, v := range generic {
		switch val := v.(type) {
		case map[string]interface{}:
			opStr, _ := val["operator"].(string)
			if opStr == "" {
				// Object without an operator key is treated as an equality
				// against the whole object (rare, but don't silently drop it).
				out[field] = Condition{Op: OpEquals, Value: val}
				continue
			}
			out[field] = Condition{Op: ConditionOp(opStr), Value: val["value"]}
		default:
			out[field] = Condition{Op: OpEquals, Value: val}
		}
	}
	return out, nil
}

// Evaluate applies the condition against a field value extracted from an
// event (or one of the router's derived virtual fields).
func (c Condition) Evaluate(fieldValue interface{}) bool {
	switch c.Op {
	case OpEquals, "":
		return equalsLoose(fieldValue, c.Value)
	case OpNotEquals:
		return !equalsLoose(fieldValue, c.Value)
	case OpContains:
		return containsLoose(fieldValue, c.Value)
	case OpNotContains:
		return !containsLoose(fieldValue, c.Value)
	case OpIn:
		return inLoose(fieldValue, c.Value)
	case OpNotIn:
		return !inLoose(fieldValue, c.Value)
	case OpGreaterThan:
		a, b, ok := numericPair(fieldValue, c.Value)
		return ok && a > b
	case OpLessThan:
		a, b, ok := numericPair(fieldValue, c.Value)
		return ok && a < b
	case OpRegex:
		pattern, ok := c.Value.(string)
		if !ok {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(toStringLoose(fieldValue))
	default:
		return false
	}
}

func equalsLoose(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return toStringLoose(a) == toStringLoose(b)
}

func containsLoose(haystack, needle interface{}) bool {
	return strings.Contains(strings.ToLower(toStringLoose(haystack)), strings.ToLower(toStringLoose(needle)))
}

func inLoose(needle, list interface{}) bool {
	items, ok := list.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if equalsLoose(needle, item) {
			return true
		}
	}
	return false
}

func numericPair(a, b interface{}) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toStringLoose(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
