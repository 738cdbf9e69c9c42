// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package httpfetch

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/feedagg/internal/info"
	"github.com/mia-platform/feedagg/internal/transport"
)

func TestFetchRemote(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, info.UserAgent(), r.Header.Get("User-Agent"))

		switch r.URL.Path {
		case "/feeds/stock.csv":
			_, _ = w.Write([]byte("UPC,Quantity\n1,2\n"))
		case "/feeds/empty.csv":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	testCases := map[string]struct {
		path          string
		expectedFile  *transport.File
		expectedError error
	}{
		"file downloaded": {
			path:         "/feeds/stock.csv",
			expectedFile: &transport.File{Name: "stock.csv", Content: []byte("UPC,Quantity\n1,2\n")},
		},
		"empty body": {
			path:          "/feeds/empty.csv",
			expectedError: transport.ErrNoData,
		},
		"not found": {
			path:          "/feeds/missing.csv",
			expectedError: transport.ErrNoData,
		},
	}

	fetcher := New(server.Client())
	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			file, err := fetcher.Fetch(t.Context(), server.URL+test.path)
			if test.expectedError != nil {
				assert.ErrorIs(t, err, test.expectedError)
				assert.Nil(t, file)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expectedFile, file)
		})
	}
}

func TestFetchNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	file, err := New(nil).Fetch(t.Context(), url+"/stock.csv")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, transport.ErrNoData)
	assert.Nil(t, file)
}

func TestFetchLocal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stockPath := filepath.Join(dir, "stock.csv")
	require.NoError(t, os.WriteFile(stockPath, []byte("UPC\n1\n"), 0o600))
	emptyPath := filepath.Join(dir, "empty.csv")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))

	fetcher := New(nil)

	file, err := fetcher.Fetch(t.Context(), stockPath)
	require.NoError(t, err)
	assert.Equal(t, &transport.File{Name: "stock.csv", Content: []byte("UPC\n1\n")}, file)

	_, err = fetcher.Fetch(t.Context(), emptyPath)
	assert.ErrorIs(t, err, transport.ErrNoData)

	_, err = fetcher.Fetch(t.Context(), filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, syscall.ENOENT)
}

func TestIsRemote(t *testing.T) {
	t.Parallel()

	assert.True(t, IsRemote("https://example.com/a.csv"))
	assert.True(t, IsRemote("HTTP://example.com/a.csv"))
	assert.False(t, IsRemote("/data/a.csv"))
	assert.False(t, IsRemote("ftp://example.com/a.csv"))
}
