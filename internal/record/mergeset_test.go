// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(m *MergeSet) []map[string]any {
	out := make([]map[string]any, 0, m.Len())
	for _, r := range m.All() {
		out = append(out, r.Fields())
	}
	return out
}

func TestMergeSetInsertRules(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		rules    Rules
		inserts  []map[string]any
		expected []map[string]any
	}{
		"append rule accumulates values": {
			rules: Rules{"status": RuleAppend},
			inserts: []map[string]any{
				{"upc": "1", "status": "A"},
				{"upc": "1", "status": "B"},
			},
			expected: []map[string]any{
				{"upc": "1", "status": []any{"A", "B"}},
			},
		},
		"max rule keeps the highest value": {
			rules: Rules{"price": RuleMax},
			inserts: []map[string]any{
				{"upc": "1", "price": 5.0},
				{"upc": "1", "price": 3.0},
			},
			expected: []map[string]any{
				{"upc": "1", "price": 5.0},
			},
		},
		"min rule keeps the lowest value": {
			rules: Rules{"qty": RuleMin},
			inserts: []map[string]any{
				{"upc": "1", "qty": 10},
				{"upc": "1", "qty": 4},
				{"upc": "1", "qty": 7},
			},
			expected: []map[string]any{
				{"upc": "1", "qty": 4},
			},
		},
		"field without rule is overwritten": {
			rules: Rules{"qty": RuleMin},
			inserts: []map[string]any{
				{"upc": "1", "title": "first", "qty": 1},
				{"upc": "1", "title": "second", "qty": 2},
			},
			expected: []map[string]any{
				{"upc": "1", "title": "second", "qty": 1},
			},
		},
		"unknown rule behaves like overwrite": {
			rules: Rules{"qty": Rule("sum")},
			inserts: []map[string]any{
				{"upc": "1", "qty": 1},
				{"upc": "1", "qty": 2},
			},
			expected: []map[string]any{
				{"upc": "1", "qty": 2},
			},
		},
		"no rules replaces whole record": {
			inserts: []map[string]any{
				{"upc": "1", "a": 1},
				{"upc": "1", "b": 2},
			},
			expected: []map[string]any{
				{"upc": "1", "b": 2},
			},
		},
		"null previous value yields the new one": {
			rules: Rules{"price": RuleMax},
			inserts: []map[string]any{
				{"upc": "1", "price": nil},
				{"upc": "1", "price": 2.0},
			},
			expected: []map[string]any{
				{"upc": "1", "price": 2.0},
			},
		},
		"first insertion order is kept": {
			inserts: []map[string]any{
				{"upc": "b"},
				{"upc": "a"},
				{"upc": "b", "x": 1},
			},
			expected: []map[string]any{
				{"upc": "b", "x": 1},
				{"upc": "a"},
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			set := NewMergeSet("upc", tc.rules)
			for _, row := range tc.inserts {
				assert.True(t, set.Insert(New(row)))
			}
			assert.Equal(t, tc.expected, collect(set))
			assert.Empty(t, set.Skipped())
		})
	}
}

func TestMergeSetInsertSkipsMissingKey(t *testing.T) {
	t.Parallel()

	set := NewMergeSet("upc", nil)
	assert.False(t, set.Insert(New(map[string]any{"sku": "x"})))
	assert.False(t, set.Insert(New(map[string]any{"upc": ""})))
	assert.False(t, set.Insert(New(map[string]any{"upc": nil})))
	assert.False(t, set.Insert(New(map[string]any{"upc": []any{"1"}})))
	assert.True(t, set.Insert(New(map[string]any{"upc": json.Number("12")})))
	assert.True(t, set.Insert(New(map[string]any{"upc": 12.0})))

	assert.Equal(t, 1, set.Len())
	skipped := set.Skipped()
	require.Len(t, skipped, 4)
	for _, skip := range skipped {
		assert.Equal(t, SkipMissingKey, skip.Reason)
		assert.Equal(t, "upc", skip.KeyField)
	}
}

func TestMergeSetInsertDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	set := NewMergeSet("upc", Rules{"status": RuleAppend})
	input := New(map[string]any{"upc": "1", "status": "A"})
	set.Insert(input)

	assert.Equal(t, "A", input.Get("status"))
	stored, ok := set.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, []any{"A"}, stored.Get("status"))
}

func TestNewMergeSetFromRecords(t *testing.T) {
	t.Parallel()

	set := NewMergeSetFromRecords(NewSetFromMaps([]map[string]any{
		{"sku": "A", "title": "first"},
		{"sku": "B", "title": "other"},
		{"sku": "A", "title": "second"},
		{"title": "keyless"},
	}), "sku")

	assert.Equal(t, "sku", set.KeyField())
	assert.Empty(t, set.Rules())
	assert.Equal(t, []map[string]any{
		{"sku": "A", "title": "second"},
		{"sku": "B", "title": "other"},
	}, collect(set))
	assert.Len(t, set.Skipped(), 1)
}

func TestMergeSetEnrich(t *testing.T) {
	t.Parallel()

	set := NewMergeSetFromRecords(NewSetFromMaps([]map[string]any{
		{"sku": "A", "name": "Widget"},
		{"sku": "B", "name": "Gadget"},
	}), "sku")

	applied := set.Enrich(NewSetFromMaps([]map[string]any{
		{"code": "A", "price": 10, "cost": 3},
		{"code": "C", "price": 99},
		{"price": 1},
		{"code": "B", "cost": 4},
	}), "code", []string{"price", "name"})

	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, []map[string]any{
		{"sku": "A", "name": "Widget", "price": 10},
		{"sku": "B", "name": "Gadget"},
	}, collect(set))

	skipped := set.Skipped()
	require.Len(t, skipped, 2)
	assert.Equal(t, SkipUnknownKey, skipped[0].Reason)
	assert.Equal(t, "C", skipped[0].Key)
	assert.Equal(t, "code", skipped[0].KeyField)
	assert.Equal(t, SkipMissingKey, skipped[1].Reason)
}

func TestMergeSetEnrichCopiesNullValues(t *testing.T) {
	t.Parallel()

	set := NewMergeSetFromRecords(NewSetFromMaps([]map[string]any{
		{"sku": "A", "price": 10},
	}), "sku")

	set.Enrich(NewSetFromMaps([]map[string]any{{"sku": "A", "price": nil}}), "sku", []string{"price"})
	stored, ok := set.Lookup("A")
	require.True(t, ok)
	assert.True(t, stored.Has("price"))
	assert.Nil(t, stored.Get("price"))
}

func TestMergeSetRecords(t *testing.T) {
	t.Parallel()

	set := NewMergeSet("upc", nil)
	set.Insert(New(map[string]any{"upc": "2"}))
	set.Insert(New(map[string]any{"upc": "1"}))

	flat := set.Records()
	require.Equal(t, 2, flat.Len())
	assert.Equal(t, "2", flat.At(0).Get("upc"))
	assert.Equal(t, "1", flat.At(1).Get("upc"))
}

func TestParseRule(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RuleAppend, ParseRule("addArray"))
	assert.Equal(t, RuleAppend, ParseRule("append"))
	assert.Equal(t, RuleMax, ParseRule("MAX"))
	assert.Equal(t, RuleMin, ParseRule(" min "))
	assert.Equal(t, RuleOverwrite, ParseRule(""))
	assert.Equal(t, Rule("custom"), ParseRule("custom"))
}

func TestRuleResolveMixedValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "b", RuleMax.resolve("a", true, "b"))
	assert.Equal(t, json.Number("7"), RuleMax.resolve(3, true, json.Number("7")))
	assert.Equal(t, "10", RuleMin.resolve("10", true, 20))
	assert.Equal(t, []any{"x", "y"}, RuleAppend.resolve("x", true, "y"))
	assert.Equal(t, []any{nil}, RuleAppend.resolve(nil, false, nil))
}
