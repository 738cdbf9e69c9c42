// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord(t *testing.T) {
	t.Parallel()

	source := map[string]any{"sku": "A1", "qty": nil}
	r := New(source)
	source["sku"] = "changed"

	assert.Equal(t, "A1", r.Get("sku"))
	assert.True(t, r.Has("qty"))
	assert.Nil(t, r.Get("qty"))
	assert.False(t, r.Has("price"))
	assert.Nil(t, r.Get("price"))

	value, ok := r.Lookup("qty")
	assert.True(t, ok)
	assert.Nil(t, value)

	r.Set("price", 9.5)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"price", "qty", "sku"}, r.Names())

	clone := r.Clone()
	clone.Set("sku", "B2")
	assert.Equal(t, "A1", r.Get("sku"))

	fields := r.Fields()
	fields["sku"] = "C3"
	assert.Equal(t, "A1", r.Get("sku"))

	var empty Record
	empty.Set("k", "v")
	assert.Equal(t, "v", empty.Get("k"))
}

func TestSet(t *testing.T) {
	t.Parallel()

	set := NewSetFromMaps([]map[string]any{
		{"id": "1"},
		{"id": "1"},
		{"id": "2"},
	})
	set.Add(New(map[string]any{"id": "3"}))

	require.Equal(t, 4, set.Len())
	ids := make([]any, 0, set.Len())
	for i, r := range set.All() {
		assert.Same(t, set.At(i), r)
		ids = append(ids, r.Get("id"))
	}
	assert.Equal(t, []any{"1", "1", "2", "3"}, ids)

	var nilSet *Set
	assert.Zero(t, nilSet.Len())
	assert.Nil(t, nilSet.Records())
	for range nilSet.All() {
		t.Fatal("nil set must not yield records")
	}
}
