// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"sync"

	"github.com/mia-platform/feedagg/internal/config"
	"github.com/mia-platform/feedagg/internal/source"
	"github.com/mia-platform/feedagg/internal/source/drive"
	"github.com/mia-platform/feedagg/internal/source/morris"
	"github.com/mia-platform/feedagg/internal/source/rest"
	"github.com/mia-platform/feedagg/internal/source/sheets"
	"github.com/mia-platform/feedagg/internal/source/tabular"
	"github.com/mia-platform/feedagg/internal/source/workspace"
	"github.com/mia-platform/feedagg/internal/transport"
	"github.com/mia-platform/feedagg/internal/transport/blob"
	"github.com/mia-platform/feedagg/internal/transport/httpfetch"
	"github.com/mia-platform/feedagg/internal/transport/s3"
	"github.com/mia-platform/feedagg/internal/transport/sftp"
)

// newRegistry returns a registry serving every supported source type. Supplier settings are
// loaded from suppliersFile when set. Readers needing cloud credentials or supplier settings are
// built on first use, so a missing configuration only fails the jobs asking for them.
func newRegistry(ctx context.Context, suppliersFile string, morrisSupplierID int) (source.Resolver, error) {
	suppliers := config.NewSuppliers()
	if suppliersFile != "" {
		var err error
		if suppliers, err = config.NewSuppliersFromPath(suppliersFile); err != nil {
			return nil, err
		}
	}

	registry := source.NewRegistry()

	httpFetcher := httpfetch.New(nil)
	registry.RegisterReader(source.TypeHTTPCSV, tabular.NewReader(httpFetcher, tabular.FormatCSV))
	registry.RegisterReader(source.TypeHTTPExcel, tabular.NewReader(httpFetcher, tabular.FormatExcel))

	workspaceConfig := sync.OnceValues(workspace.ConfigFromEnv)
	registry.Register(source.TypeGoogleSheets, once(func() (source.Reader, error) {
		cfg, err := workspaceConfig()
		if err != nil {
			return nil, err
		}
		return asReader(sheets.NewReader(ctx, cfg))
	}))
	registry.Register(source.TypeDriveFolder, once(func() (source.Reader, error) {
		cfg, err := workspaceConfig()
		if err != nil {
			return nil, err
		}
		return asReader(drive.NewReader(ctx, cfg))
	}))

	registry.Register(source.TypeMorrisXML, func(context.Context, int) (source.Reader, error) {
		cfg, err := suppliers.SFTPFor(morrisSupplierID)
		if err != nil {
			return nil, err
		}
		return morris.NewReader(sftp.New(cfg)), nil
	})
	registry.Register(source.TypeSFTPExcel, sftpFactory(suppliers, tabular.FormatExcel))
	registry.Register(source.TypeSFTPCSV, sftpFactory(suppliers, tabular.FormatCSV))

	restClient := sync.OnceValues(func() (*rest.Client, error) {
		cfg, err := rest.ConfigFromEnv()
		if err != nil {
			return nil, err
		}
		return rest.NewClient(cfg, nil), nil
	})
	registry.Register(source.TypeRESTAPI, func(_ context.Context, supplierID int) (source.Reader, error) {
		api, err := suppliers.RESTFor(supplierID)
		if err != nil {
			return nil, err
		}
		client, err := restClient()
		if err != nil {
			return nil, err
		}
		return client.Reader(supplierID, api), nil
	})

	blobFetcher := sync.OnceValues(func() (transport.Fetcher, error) {
		return asFetcher(blob.NewFromEnv())
	})
	registry.Register(source.TypeBlobCSV, fetcherFactory(blobFetcher, tabular.FormatCSV))
	registry.Register(source.TypeBlobExcel, fetcherFactory(blobFetcher, tabular.FormatExcel))

	s3Fetcher := sync.OnceValues(func() (transport.Fetcher, error) {
		return asFetcher(s3.NewFromEnv(ctx))
	})
	registry.Register(source.TypeS3CSV, fetcherFactory(s3Fetcher, tabular.FormatCSV))
	registry.Register(source.TypeS3Excel, fetcherFactory(s3Fetcher, tabular.FormatExcel))

	return registry, nil
}

// once returns a Factory building its reader a single time for every supplier.
func once(build func() (source.Reader, error)) source.Factory {
	reader := sync.OnceValues(build)
	return func(context.Context, int) (source.Reader, error) {
		return reader()
	}
}

// sftpFactory returns a Factory reading format files from the SFTP server of each supplier.
func sftpFactory(suppliers *config.Suppliers, format tabular.Format) source.Factory {
	return func(_ context.Context, supplierID int) (source.Reader, error) {
		cfg, err := suppliers.SFTPFor(supplierID)
		if err != nil {
			return nil, err
		}
		return tabular.NewReader(sftp.New(cfg), format), nil
	}
}

// fetcherFactory returns a Factory reading format files through a shared fetcher.
func fetcherFactory(fetcher func() (transport.Fetcher, error), format tabular.Format) source.Factory {
	return func(context.Context, int) (source.Reader, error) {
		f, err := fetcher()
		if err != nil {
			return nil, err
		}
		return tabular.NewReader(f, format), nil
	}
}

func asReader[T source.Reader](reader T, err error) (source.Reader, error) {
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func asFetcher[T transport.Fetcher](fetcher T, err error) (transport.Fetcher, error) {
	if err != nil {
		return nil, err
	}
	return fetcher, nil
}
