// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSuppliersFromPath(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	testCases := map[string]struct {
		path          string
		expectedIDs   []int
		expectedError error
		errContains   string
	}{
		"valid yaml stream": {
			path:        filepath.Join("testdata", "suppliers.yaml"),
			expectedIDs: []int{7, 19},
		},
		"valid json document": {
			path:        filepath.Join("testdata", "suppliers.json"),
			expectedIDs: []int{3},
		},
		"empty document": {
			path:        filepath.Join("testdata", "empty.yaml"),
			expectedIDs: []int{},
		},
		"unknown field": {
			path:          filepath.Join("testdata", "unknown-field.yaml"),
			expectedError: ErrParsing,
			errContains:   "field ftp not found",
		},
		"missing required fields": {
			path:          filepath.Join("testdata", "missing-fields.yaml"),
			expectedError: ErrParsing,
			errContains:   "rest.base_uri, rest.items_uri, sftp.host",
		},
		"missing file": {
			path:          filepath.Join(tempDir, "missing.yaml"),
			expectedError: syscall.ENOENT,
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			suppliers, err := NewSuppliersFromPath(test.path)
			if test.expectedError != nil {
				assert.ErrorIs(t, err, test.expectedError)
				if test.errContains != "" {
					assert.ErrorContains(t, err, test.errContains)
				}
				assert.Nil(t, suppliers)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expectedIDs, suppliers.IDs())
		})
	}
}

func TestSupplierDefaults(t *testing.T) {
	t.Parallel()

	suppliers, err := NewSuppliersFromPath(filepath.Join("testdata", "suppliers.yaml"))
	require.NoError(t, err)

	rest, err := suppliers.RESTFor(7)
	require.NoError(t, err)
	assert.Equal(t, &REST{
		BaseURI:  "https://api.acme.example.com",
		ItemsURI: "/api/v1/items",
		TokenURI: "/api/v1/auth/init",
		TokenKey: "access_token",
		Auth: RESTAuth{
			Username:  "feeds",
			Password:  "secret",
			CompanyID: "42",
		},
		Pagination: Pagination{
			PageParam: "page",
			SizeParam: "per_page",
			PageSize:  100,
			DataKey:   "data",
		},
	}, rest)

	sftp, err := suppliers.SFTPFor(19)
	require.NoError(t, err)
	assert.Equal(t, "sftp.morris.example.com:22", sftp.Address())
	assert.Equal(t, &Proxy{Address: "proxy.example.com:1080", Username: "user", Password: "pass"}, sftp.Proxy)

	jsonSuppliers, err := NewSuppliersFromPath(filepath.Join("testdata", "suppliers.json"))
	require.NoError(t, err)
	sftp, err = jsonSuppliers.SFTPFor(3)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:2222", sftp.Address())
	assert.Equal(t, "/keys/id_ed25519", sftp.PrivateKeyFile)
}

func TestSupplierLookup(t *testing.T) {
	t.Parallel()

	suppliers := NewSuppliers(
		&Supplier{ID: 1, REST: &REST{BaseURI: "https://example.com", ItemsURI: "/items"}},
		&Supplier{ID: 2},
	)

	_, err := suppliers.Supplier(9)
	assert.ErrorIs(t, err, ErrUnknownSupplier)

	_, err = suppliers.SFTPFor(1)
	assert.ErrorIs(t, err, ErrMissingSection)

	_, err = suppliers.RESTFor(2)
	assert.ErrorIs(t, err, ErrMissingSection)

	_, err = suppliers.RESTFor(9)
	assert.ErrorIs(t, err, ErrUnknownSupplier)

	rest, err := suppliers.RESTFor(1)
	require.NoError(t, err)
	assert.Equal(t, "/items", rest.ItemsURI)

	var nilSuppliers *Suppliers
	_, err = nilSuppliers.Supplier(1)
	assert.ErrorIs(t, err, ErrUnknownSupplier)
}
