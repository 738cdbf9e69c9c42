// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"context"

	"github.com/mia-platform/feedagg/internal/record"
)

// Reader defines the interface for a data source able to turn a locator into a set of raw rows.
type Reader interface {
	// Read fetches the rows identified by locator, optionally restricted by selector (for example
	// a spreadsheet range). Finding no data is not an error: an empty set is returned and the
	// reader logs the reason. Errors are reserved to fatal conditions that must abort the job.
	Read(ctx context.Context, locator, selector string) (*record.Set, error)
}

// ReaderFunc adapts a plain function to the Reader interface.
type ReaderFunc func(ctx context.Context, locator, selector string) (*record.Set, error)

// Read implements Reader.
func (f ReaderFunc) Read(ctx context.Context, locator, selector string) (*record.Set, error) {
	return f(ctx, locator, selector)
}

// Factory builds the Reader serving a supplier. Readers that depend on supplier specific
// configuration (credentials, remote hosts) are created lazily through a Factory.
type Factory func(ctx context.Context, supplierID int) (Reader, error)

// Static returns a Factory always yielding r.
func Static(r Reader) Factory {
	return func(context.Context, int) (Reader, error) {
		return r, nil
	}
}

// Resolver looks up the Reader serving a source type for a supplier.
type Resolver interface {
	// Resolve returns ErrUnsupportedType when no reader is registered for typeID.
	Resolve(ctx context.Context, typeID, supplierID int) (Reader, error)
}
