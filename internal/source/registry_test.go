// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/feedagg/internal/record"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	static := ReaderFunc(func(context.Context, string, string) (*record.Set, error) {
		return record.NewSet(), nil
	})

	registry := NewRegistry()
	registry.RegisterReader(TypeHTTPCSV, static)

	var requestedSupplier int
	registry.Register(TypeSFTPCSV, func(_ context.Context, supplierID int) (Reader, error) {
		requestedSupplier = supplierID
		if supplierID == 0 {
			return nil, assert.AnError
		}
		return static, nil
	})

	assert.Equal(t, []int{TypeHTTPCSV, TypeSFTPCSV}, registry.TypeIDs())

	reader, err := registry.Resolve(t.Context(), TypeHTTPCSV, 1)
	require.NoError(t, err)
	set, err := reader.Read(t.Context(), "x", "")
	require.NoError(t, err)
	assert.Zero(t, set.Len())

	_, err = registry.Resolve(t.Context(), TypeSFTPCSV, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, requestedSupplier)

	_, err = registry.Resolve(t.Context(), TypeSFTPCSV, 0)
	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ErrUnsupportedType)

	_, err = registry.Resolve(t.Context(), 99, 1)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.EqualError(t, err, "unsupported source type: 99")
}
