// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package mapper

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/mia-platform/feedagg/internal/record"
)

// Column binds an output field to the raw field it is read from.
type Column struct {
	Target string
	Source string
	Rule   record.Rule
}

// ColumnMap is the parsed form of a job column_map_rules object.
type ColumnMap struct {
	columns []Column
	rules   record.Rules
}

// NewColumnMap validates raw and returns the corresponding ColumnMap.
// Every value must be either a source field name or a [source, rule] array; all malformed
// entries are reported together in a single ShapeError.
func NewColumnMap(raw map[string]any) (*ColumnMap, error) {
	var shapeErrs error
	columnMap := &ColumnMap{
		columns: make([]Column, 0, len(raw)),
		rules:   make(record.Rules),
	}

	for _, target := range slices.Sorted(maps.Keys(raw)) {
		column, hasRule, err := parseColumn(target, raw[target])
		if err != nil {
			shapeErrs = errors.Join(shapeErrs, err)
			continue
		}

		columnMap.columns = append(columnMap.columns, column)
		if hasRule {
			columnMap.rules[target] = column.Rule
		}
	}

	if shapeErrs != nil {
		return nil, NewShapeError(shapeErrs)
	}

	return columnMap, nil
}

func parseColumn(target string, value any) (Column, bool, error) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return Column{}, false, fmt.Errorf("field %q: source field name is empty", target)
		}
		return Column{Target: target, Source: v, Rule: record.RuleOverwrite}, false, nil
	case []any:
		if len(v) < 2 {
			return Column{}, false, fmt.Errorf("field %q: expected an array with a source field and a rule, got %d elements", target, len(v))
		}

		source, ok := v[0].(string)
		if !ok || source == "" {
			return Column{}, false, fmt.Errorf("field %q: source field must be a non-empty string", target)
		}
		rule, ok := v[1].(string)
		if !ok {
			return Column{}, false, fmt.Errorf("field %q: rule must be a string", target)
		}
		return Column{Target: target, Source: source, Rule: record.ParseRule(rule)}, true, nil
	default:
		return Column{}, false, fmt.Errorf("field %q: unsupported mapping value of type %T", target, value)
	}
}

// Columns returns the columns ordered by target name.
func (c *ColumnMap) Columns() []Column {
	return slices.Clone(c.columns)
}

// Rules returns the merge rules declared through [source, rule] entries.
func (c *ColumnMap) Rules() record.Rules {
	return maps.Clone(c.rules)
}

// Targets returns the output field names ordered by name.
func (c *ColumnMap) Targets() []string {
	targets := make([]string, 0, len(c.columns))
	for _, column := range c.columns {
		targets = append(targets, column.Target)
	}
	return targets
}

// Has reports whether target is one of the mapped output fields.
func (c *ColumnMap) Has(target string) bool {
	return slices.ContainsFunc(c.columns, func(column Column) bool {
		return column.Target == target
	})
}
