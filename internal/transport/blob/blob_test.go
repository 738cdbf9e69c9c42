// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package blob

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	// well known key of the Azurite storage emulator
	emulatorKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	listResponse = `<?xml version="1.0" encoding="utf-8"?>
<EnumerationResults ServiceEndpoint="http://127.0.0.1/devstoreaccount1" ContainerName="feeds">
	<Prefix>acme/stock</Prefix>
	<Blobs>
		<Blob>
			<Name>acme/stock_20240530.csv</Name>
			<Properties>
				<Last-Modified>Thu, 30 May 2024 12:00:00 GMT</Last-Modified>
				<Content-Length>6</Content-Length>
				<BlobType>BlockBlob</BlobType>
			</Properties>
		</Blob>
		<Blob>
			<Name>acme/stock_20240601.csv</Name>
			<Properties>
				<Last-Modified>Sat, 01 Jun 2024 12:00:00 GMT</Last-Modified>
				<Content-Length>6</Content-Length>
				<BlobType>BlockBlob</BlobType>
			</Properties>
		</Blob>
	</Blobs>
	<NextMarker />
</EnumerationResults>`
)

func TestConfigValidation(t *testing.T) {
	testCases := map[string]struct {
		env           map[string]string
		expectedError error
	}{
		"no configuration": {
			expectedError: ErrMissingEnvVariable,
		},
		"both configurations": {
			env: map[string]string{
				"AZURE_STORAGE_BLOB_CONNECTION_STRING": "UseDevelopmentStorage=true",
				"AZURE_STORAGE_BLOB_ACCOUNT_NAME":      "feeds",
			},
			expectedError: ErrInvalidEnvVariable,
		},
		"connection string": {
			env: map[string]string{
				"AZURE_STORAGE_BLOB_CONNECTION_STRING": "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=" + emulatorKey + ";BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;",
			},
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			for key, value := range test.env {
				t.Setenv(key, value)
			}

			fetcher, err := NewFromEnv()
			if test.expectedError != nil {
				assert.ErrorIs(t, err, test.expectedError)
				assert.Nil(t, fetcher)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, fetcher)
		})
	}
}

func TestServiceURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://feeds.blob.core.windows.net/", Config{AccountName: "feeds"}.serviceURL())
	assert.Equal(t, "https://feeds.blob.core.windows.net/", Config{AccountName: "https://feeds.blob.core.windows.net/"}.serviceURL())
}

type fakeStore struct {
	names    map[string]string
	contents map[string][]byte
	err      error
}

func (f *fakeStore) newest(_ context.Context, container, _ string) (string, bool, error) {
	name, ok := f.names[container]
	return name, ok, f.err
}

func (f *fakeStore) download(_ context.Context, _, name string) ([]byte, error) {
	return f.contents[name], nil
}

func TestFetch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		names:    map[string]string{"feeds": "stock.csv", "empty": "empty.csv"},
		contents: map[string][]byte{"stock.csv": []byte("UPC\n1\n")},
	}
	fetcher := &Fetcher{store: store}

	file, err := fetcher.Fetch(t.Context(), "feeds/stock")
	require.NoError(t, err)
	assert.Equal(t, &transport.File{Name: "stock.csv", Content: []byte("UPC\n1\n")}, file)

	_, err = fetcher.Fetch(t.Context(), "missing/stock")
	assert.ErrorIs(t, err, transport.ErrNoData)

	_, err = fetcher.Fetch(t.Context(), "empty/stock")
	assert.ErrorIs(t, err, transport.ErrNoData)

	_, err = fetcher.Fetch(t.Context(), "")
	assert.ErrorContains(t, err, "missing container")

	_, err = (&Fetcher{store: &fakeStore{err: assert.AnError}}).Fetch(t.Context(), "feeds/stock")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestFetchFromStorageAccount(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/devstoreaccount1/feeds" && r.URL.Query().Get("comp") == "list":
			assert.Equal(t, "acme/stock", r.URL.Query().Get("prefix"))
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(listResponse))
		case r.URL.Path == "/devstoreaccount1/feeds/acme/stock_20240601.csv":
			w.Header().Set("Content-Type", "text/csv")
			_, _ = w.Write([]byte("UPC\n1\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher, err := New(Config{
		ConnectionString: "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=" + emulatorKey + ";BlobEndpoint=" + server.URL + "/devstoreaccount1;",
	})
	require.NoError(t, err)

	file, err := fetcher.Fetch(t.Context(), "feeds/acme/stock")
	require.NoError(t, err)
	assert.Equal(t, &transport.File{Name: "acme/stock_20240601.csv", Content: []byte("UPC\n1\n")}, file)
}
