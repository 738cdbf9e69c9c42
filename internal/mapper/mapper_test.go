// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/feedagg/internal/record"
)

func TestNewColumnMap(t *testing.T) {
	t.Parallel()

	t.Run("valid mapping with and without rules", func(t *testing.T) {
		t.Parallel()
		columns, err := NewColumnMap(map[string]any{
			"upc":    "UPC",
			"qty":    []any{"Quantity", "min"},
			"status": []any{"Sublocation", "addArray"},
			"title":  "Name",
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"qty", "status", "title", "upc"}, columns.Targets())
		assert.Equal(t, record.Rules{"qty": record.RuleMin, "status": record.RuleAppend}, columns.Rules())
		assert.True(t, columns.Has("upc"))
		assert.False(t, columns.Has("price"))
		assert.Equal(t, Column{Target: "qty", Source: "Quantity", Rule: record.RuleMin}, columns.Columns()[0])
	})

	t.Run("array with extra elements keeps the first two", func(t *testing.T) {
		t.Parallel()
		columns, err := NewColumnMap(map[string]any{"price": []any{"Price", "max", "ignored"}})
		require.NoError(t, err)
		assert.Equal(t, record.Rules{"price": record.RuleMax}, columns.Rules())
	})

	testCases := map[string]map[string]any{
		"single element array": {"qty": []any{"Quantity"}},
		"empty array":          {"qty": []any{}},
		"numeric source":       {"qty": []any{12, "min"}},
		"numeric rule":         {"qty": []any{"Quantity", 1}},
		"empty source":         {"qty": ""},
		"object value":         {"qty": map[string]any{"a": "b"}},
		"null value":           {"qty": nil},
	}

	for name, raw := range testCases {
		t.Run("invalid shape "+name, func(t *testing.T) {
			t.Parallel()
			columns, err := NewColumnMap(raw)
			assert.Nil(t, columns)
			assert.ErrorIs(t, err, ErrInvalidMappingShape)

			var shapeErr *ShapeError
			assert.ErrorAs(t, err, &shapeErr)
			assert.ErrorContains(t, err, `field "qty"`)
		})
	}

	t.Run("all malformed entries are reported", func(t *testing.T) {
		t.Parallel()
		_, err := NewColumnMap(map[string]any{
			"qty":   []any{"Quantity"},
			"price": 1,
			"upc":   "UPC",
		})
		require.Error(t, err)
		assert.ErrorContains(t, err, `field "qty"`)
		assert.ErrorContains(t, err, `field "price"`)
	})
}

func TestMapper(t *testing.T) {
	t.Parallel()

	columns, err := NewColumnMap(map[string]any{
		"upc":    "UPC",
		"asin":   "ASIN",
		"price":  []any{"Price", "max"},
		"qty":    []any{"Quantity", "min"},
		"status": []any{"Location", "addArray"},
		"title":  "Name",
	})
	require.NoError(t, err)
	mapper := New(columns)

	t.Run("normalizes and merges rows", func(t *testing.T) {
		t.Parallel()

		rows := record.NewSetFromMaps([]map[string]any{
			{"UPC": "0123-4567-8901-99", "ASIN": "b00test123", "Price": "19,99", "Quantity": "10 pcs", "Location": "A", "Name": "Widget"},
			{"UPC": "0123456789019", "ASIN": "bad", "Price": "21.50", "Quantity": "4", "Location": "B", "Name": "Widget v2", "Extra": "ignored"},
			{"UPC": "999", "ASIN": nil, "Price": "n/a", "Quantity": "", "Location": "C", "Name": nil},
		})

		output, err := mapper.Map(t.Context(), rows, 42, 3)
		require.NoError(t, err)
		require.Equal(t, 2, output.Len())
		assert.Equal(t, KeyField, output.KeyField())

		first, ok := output.Lookup("0123456789019")
		require.True(t, ok)
		assert.Equal(t, map[string]any{
			"upc":         "0123456789019",
			"asin":        nil,
			"price":       21.5,
			"qty":         4,
			"status":      []any{"A", "B"},
			"title":       "Widget v2",
			"supplier_id": 42,
			"version":     3,
		}, first.Fields())

		second, ok := output.Lookup("999")
		require.True(t, ok)
		assert.Equal(t, map[string]any{
			"upc":         "999",
			"asin":        nil,
			"price":       0.0,
			"qty":         0,
			"status":      []any{"C"},
			"title":       nil,
			"supplier_id": 42,
			"version":     3,
		}, second.Fields())
	})

	t.Run("rows with an empty key are dropped", func(t *testing.T) {
		t.Parallel()

		rows := record.NewSetFromMaps([]map[string]any{
			{"UPC": "---", "ASIN": "", "Price": "1", "Quantity": "1", "Location": "A", "Name": "x"},
		})

		output, err := mapper.Map(t.Context(), rows, 1, 1)
		require.NoError(t, err)
		assert.Zero(t, output.Len())
		assert.Len(t, output.Skipped(), 1)
	})

	t.Run("missing fields are reported for every row", func(t *testing.T) {
		t.Parallel()

		rows := record.NewSetFromMaps([]map[string]any{
			{"UPC": "1", "ASIN": "", "Price": "1", "Quantity": "1", "Location": "A"},
			{"UPC": "2", "ASIN": "", "Price": "1", "Quantity": "1", "Location": "A", "Name": "ok"},
			{"UPC": "3", "ASIN": ""},
		})

		output, err := mapper.Map(t.Context(), rows, 5, 1)
		assert.Nil(t, output)
		require.ErrorIs(t, err, ErrMissingMappedFields)

		var missingErr *MissingFieldsError
		require.ErrorAs(t, err, &missingErr)
		assert.Equal(t, 5, missingErr.SupplierID)
		require.Len(t, missingErr.Rows, 2)
		assert.Equal(t, 0, missingErr.Rows[0].Index)
		assert.Equal(t, []string{"Name"}, missingErr.Rows[0].Missing)
		assert.Equal(t, 2, missingErr.Rows[1].Index)
		assert.ElementsMatch(t, []string{"Location", "Price", "Quantity", "Name"}, missingErr.Rows[1].Missing)
		assert.Equal(t, map[string]any{"UPC": "3", "ASIN": ""}, missingErr.Rows[1].Fields)
	})

	t.Run("empty input produces an empty set", func(t *testing.T) {
		t.Parallel()

		output, err := mapper.Map(t.Context(), record.NewSet(), 5, 1)
		require.NoError(t, err)
		assert.Zero(t, output.Len())
	})
}

func TestMapperWithoutRules(t *testing.T) {
	t.Parallel()

	columns, err := NewColumnMap(map[string]any{"upc": "code", "qty": "stock"})
	require.NoError(t, err)

	output, err := New(columns).Map(t.Context(), record.NewSetFromMaps([]map[string]any{
		{"code": "A1", "stock": "3"},
		{"code": "A1", "stock": "9"},
	}), 1, 2)
	require.NoError(t, err)

	stored, ok := output.Lookup("A1")
	require.True(t, ok)
	assert.Equal(t, 9, stored.Get("qty"))
}
