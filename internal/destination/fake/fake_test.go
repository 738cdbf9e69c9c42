// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mia-platform/feedagg/internal/destination"
)

func TestFakeDestination(t *testing.T) {
	t.Parallel()

	fakeDestination := NewFakeDestination(t)
	assert.Empty(t, fakeDestination.SentData)

	data := &destination.Data{
		SupplierID: 1,
		Key:        "id1",
		Fields:     map[string]any{"key": "value"},
	}

	assert.NoError(t, fakeDestination.SendData(t.Context(), data))
	assert.Equal(t, []*destination.Data{data}, fakeDestination.SentData)

	assert.NoError(t, fakeDestination.Close(t.Context()))
	assert.True(t, fakeDestination.Closed)
}

func TestFailingDestination(t *testing.T) {
	t.Parallel()

	fakeDestination := NewFailingDestination(t, 1, assert.AnError)
	assert.NoError(t, fakeDestination.SendData(t.Context(), &destination.Data{Key: "1"}))
	assert.ErrorIs(t, fakeDestination.SendData(t.Context(), &destination.Data{Key: "2"}), assert.AnError)
	assert.Len(t, fakeDestination.SentData, 1)
}
