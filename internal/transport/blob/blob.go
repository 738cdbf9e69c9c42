// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName = "feedagg:transport:blob"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

// Config holds the storage account connection settings.
type Config struct {
	ConnectionString string `env:"AZURE_STORAGE_BLOB_CONNECTION_STRING"`
	AccountName      string `env:"AZURE_STORAGE_BLOB_ACCOUNT_NAME"`
}

func (c Config) validate() error {
	if len(c.ConnectionString) == 0 && len(c.AccountName) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "one of AZURE_STORAGE_BLOB_CONNECTION_STRING or AZURE_STORAGE_BLOB_ACCOUNT_NAME must be present")
	}
	if len(c.ConnectionString) > 0 && len(c.AccountName) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "only one of AZURE_STORAGE_BLOB_CONNECTION_STRING or AZURE_STORAGE_BLOB_ACCOUNT_NAME can be set")
	}
	return nil
}

func (c Config) serviceURL() string {
	if strings.Contains(c.AccountName, ".blob.core.windows.net") {
		return c.AccountName
	}

	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.AccountName)
}

// store lists and downloads blobs.
type store interface {
	newest(ctx context.Context, container, prefix string) (string, bool, error)
	download(ctx context.Context, container, name string) ([]byte, error)
}

var _ transport.Fetcher = &Fetcher{}

// Fetcher downloads the most recently modified blob matching a "container/prefix" locator.
type Fetcher struct {
	store store
}

// NewFromEnv returns a Fetcher configured from the environment.
func NewFromEnv() (*Fetcher, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// New returns a Fetcher for the storage account described by cfg. Without a connection string
// the default Azure credential chain is used.
func New(cfg Config) (*Fetcher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.ConnectionString != "" {
		client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, err
		}
		return &Fetcher{store: &clientStore{client: client}}, nil
	}

	credentials, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return newWithCredentials(cfg.serviceURL(), credentials)
}

func newWithCredentials(serviceURL string, credentials azcore.TokenCredential) (*Fetcher, error) {
	client, err := azblob.NewClient(serviceURL, credentials, nil)
	if err != nil {
		return nil, err
	}
	return &Fetcher{store: &clientStore{client: client}}, nil
}

// Fetch implements transport.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*transport.File, error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	container, prefix := transport.SplitLocator(locator)
	if container == "" {
		return nil, fmt.Errorf("invalid blob locator %q: missing container", locator)
	}

	name, found, err := f.store.newest(ctx, container, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing container %s: %w", container, err)
	}
	if !found {
		log.Warn("no blob matching prefix", "container", container, "prefix", prefix)
		return nil, fmt.Errorf("%w: no blob starting with %q in %s", transport.ErrNoData, prefix, container)
	}

	content, err := f.store.download(ctx, container, name)
	if err != nil {
		return nil, fmt.Errorf("downloading blob %s: %w", name, err)
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: blob %s is empty", transport.ErrNoData, name)
	}

	log.Debug("blob downloaded", "container", container, "blob", name, "size", len(content))
	return &transport.File{Name: name, Content: content}, nil
}

type clientStore struct {
	client *azblob.Client
}

func (s *clientStore) newest(ctx context.Context, container, prefix string) (string, bool, error) {
	options := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		options.Prefix = &prefix
	}

	var newestName string
	var newestTime time.Time
	found := false
	pager := s.client.NewListBlobsFlatPager(container, options)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", false, err
		}
		if page.Segment == nil {
			continue
		}

		for _, item := range page.Segment.BlobItems {
			if item == nil || item.Name == nil {
				continue
			}

			var modified time.Time
			if item.Properties != nil && item.Properties.LastModified != nil {
				modified = *item.Properties.LastModified
			}
			if !found || modified.After(newestTime) {
				newestName, newestTime, found = *item.Name, modified, true
			}
		}
	}

	return newestName, found, nil
}

func (s *clientStore) download(ctx context.Context, container, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, container, name, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
