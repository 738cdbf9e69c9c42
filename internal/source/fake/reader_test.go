// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeReader(t *testing.T) {
	t.Parallel()

	reader := NewFakeReader(t, map[string][]map[string]any{
		"feed": {{"sku": "1"}, {"sku": "2"}},
	})

	set, err := reader.Read(t.Context(), "feed", "A:B")
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	set, err = reader.Read(t.Context(), "unknown", "")
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	assert.Equal(t, []Call{{Locator: "feed", Selector: "A:B"}, {Locator: "unknown"}}, reader.Calls)
	assert.Equal(t, 2, reader.CallCount())
}

func TestFakeReaderWithError(t *testing.T) {
	t.Parallel()

	reader := NewFakeReaderWithError(t, assert.AnError)
	set, err := reader.Read(t.Context(), "feed", "")
	assert.Nil(t, set)
	assert.ErrorIs(t, err, assert.AnError)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = NewFakeReader(t, nil).Read(ctx, "feed", "")
	assert.ErrorIs(t, err, context.Canceled)
}
