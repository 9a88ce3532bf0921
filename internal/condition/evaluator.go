// Package condition evaluates WHERE chains against rows.
//
// A chain is folded strictly left to right: the logic operator stored with
// predicate i combines its result with the accumulated result of predicates
// 0..i-1. There is no precedence, so "a OR b AND c" means "(a OR b) AND c".
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zakazai/jsonsql/internal/parser"
	"github.com/zakazai/jsonsql/internal/types"
)

// Evaluator is safe for concurrent use. Its zero value is not usable, see New.
type Evaluator struct {
	patterns *patternCache
}

// New creates an evaluator with an empty LIKE pattern cache
func New() *Evaluator {
	return &Evaluator{patterns: newPatternCache()}
}

// Match reports whether row satisfies the chain. An empty chain matches every row.
func (e *Evaluator) Match(chain []parser.Condition, row types.Row) bool {
	if len(chain) == 0 {
		return true
	}
	result := e.eval(chain[0].Predicate, row)
	for _, cond := range chain[1:] {
		next := e.eval(cond.Predicate, row)
		switch cond.Logic {
		case parser.LogicOr:
			result = result || next
		default:
			result = result && next
		}
	}
	return result
}

// Filter returns the keys whose rows match, in the order given
func (e *Evaluator) Filter(chain []parser.Condition, keys []string, rows map[string]types.Row) []string {
	matched := make([]string, 0, len(keys))
	for _, key := range keys {
		if e.Match(chain, rows[key]) {
			matched = append(matched, key)
		}
	}
	return matched
}

func (e *Evaluator) eval(pred parser.Predicate, row types.Row) bool {
	actual, present := row[pred.Column]

	switch pred.Operator {
	case parser.OpIsNull:
		return !present || actual == nil
	case parser.OpIsNotNull:
		return present && actual != nil
	}
	if !present {
		return false
	}

	switch pred.Operator {
	case parser.OpIn:
		return contains(pred.List, actual)
	case parser.OpNotIn:
		return !contains(pred.List, actual)
	case parser.OpLike:
		return e.patterns.match(pred.Value.Interface(), actual)
	}

	if pred.Value.Type == parser.NumberValue {
		return compareNumber(pred.Operator, actual, float64(pred.Value.Number))
	}
	// A quoted number against a numeric value compares as a number.
	if isNumber(actual) {
		if literal, err := strconv.ParseFloat(strings.TrimSpace(pred.Value.Text), 64); err == nil {
			return compareNumber(pred.Operator, actual, literal)
		}
	}
	if actual == nil {
		return pred.Operator == parser.OpNotEqual || pred.Operator == parser.OpBangEqual
	}
	return compareText(pred.Operator, text(actual), pred.Value.Text)
}

func compareNumber(op parser.Operator, actual interface{}, literal float64) bool {
	n, ok := toFloat(actual)
	if !ok {
		return op == parser.OpNotEqual || op == parser.OpBangEqual
	}
	switch op {
	case parser.OpEqual:
		return n == literal
	case parser.OpNotEqual, parser.OpBangEqual:
		return n != literal
	case parser.OpLess:
		return n < literal
	case parser.OpGreater:
		return n > literal
	case parser.OpLessEqual:
		return n <= literal
	case parser.OpGreaterEqual:
		return n >= literal
	}
	return false
}

func compareText(op parser.Operator, actual, literal string) bool {
	c := strings.Compare(actual, literal)
	switch op {
	case parser.OpEqual:
		return c == 0
	case parser.OpNotEqual, parser.OpBangEqual:
		return c != 0
	case parser.OpLess:
		return c < 0
	case parser.OpGreater:
		return c > 0
	case parser.OpLessEqual:
		return c <= 0
	case parser.OpGreaterEqual:
		return c >= 0
	}
	return false
}

// contains is strict: a NUMBER literal only equals an integer value and a
// text literal only equals a string value.
func contains(list []parser.Value, actual interface{}) bool {
	for _, v := range list {
		switch v.Type {
		case parser.NumberValue:
			if n, ok := actual.(int64); ok && n == v.Number {
				return true
			}
		default:
			if s, ok := actual.(string); ok && s == v.Text {
				return true
			}
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int64, int, float64, json.Number:
		return true
	}
	return false
}

func text(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
