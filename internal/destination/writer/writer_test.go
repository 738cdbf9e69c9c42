// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/feedagg/internal/destination"
)

func TestNewWriterDestination(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	testDestination := NewDestination(buffer)

	err := testDestination.SendData(t.Context(), &destination.Data{
		RunID:      "run-1",
		SupplierID: 7,
		Key:        "0123456789012",
		Fields: map[string]any{
			"upc":   "0123456789012",
			"qty":   3,
			"price": 19.99,
		},
	})
	require.NoError(t, err)

	err = testDestination.SendData(t.Context(), &destination.Data{
		SupplierID: 7,
		Key:        "42",
	})
	require.NoError(t, err)

	expectedOutput := `Send data:
	Run: run-1
	Supplier: 7
	Key: 0123456789012
	Fields: {
		"price": 19.99,
		"qty": 3,
		"upc": "0123456789012"
	}

Send data:
	Supplier: 7
	Key: 42
	Fields: {}

`

	assert.Equal(t, expectedOutput, buffer.String())
}
