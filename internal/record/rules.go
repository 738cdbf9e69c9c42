// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package record

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Rule names the strategy used to combine an incoming field value with the one already
// stored under the same key. Unknown rule names behave like RuleOverwrite.
type Rule string

const (
	RuleOverwrite Rule = "overwrite"
	RuleAppend    Rule = "addArray"
	RuleMax       Rule = "max"
	RuleMin       Rule = "min"
)

// Rules associates a merge rule to a field name.
type Rules map[string]Rule

// ParseRule normalizes a rule name as written in a column mapping.
func ParseRule(name string) Rule {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "addarray", "append", "append-to-list":
		return RuleAppend
	case "max":
		return RuleMax
	case "min":
		return RuleMin
	case "overwrite", "":
		return RuleOverwrite
	default:
		return Rule(name)
	}
}

// resolve combines the previous value of a field with the incoming one.
// hasOld is false when no record was stored under the key yet.
func (r Rule) resolve(old any, hasOld bool, incoming any) any {
	switch r {
	case RuleAppend:
		list := make([]any, 0, 1)
		if hasOld {
			list = appendable(old)
		}
		return append(list, incoming)
	case RuleMax:
		if !hasOld || old == nil {
			return incoming
		}
		if cmp, ok := compareNumbers(old, incoming); ok && cmp > 0 {
			return old
		}
		return incoming
	case RuleMin:
		if !hasOld || old == nil {
			return incoming
		}
		if cmp, ok := compareNumbers(old, incoming); ok && cmp < 0 {
			return old
		}
		return incoming
	default:
		return incoming
	}
}

// appendable returns a copy of old usable as the head of an accumulated list.
// A scalar left by a previous overwrite becomes the first element of the list.
func appendable(old any) []any {
	switch v := old.(type) {
	case nil:
		return make([]any, 0, 1)
	case []any:
		return slices.Clone(v)
	default:
		return []any{v}
	}
}

// compareNumbers compares a and b numerically, reporting false if either is not a number.
func compareNumbers(a, b any) (int, bool) {
	fa, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	fb, ok := toFloat(b)
	if !ok {
		return 0, false
	}

	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	default:
		return 0, true
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
