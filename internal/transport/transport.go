// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package transport

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	// ErrNoData is returned when the location answered but holds nothing to read.
	// Readers turn it into an empty record set.
	ErrNoData = errors.New("no data available")
)

// File is a downloaded supplier file.
type File struct {
	Name    string
	Content []byte
}

// Ext returns the lower case extension of the file name, without the leading dot.
func (f *File) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.Name)), ".")
}

// Fetcher downloads the file identified by locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string) (*File, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, locator string) (*File, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, locator string) (*File, error) {
	return f(ctx, locator)
}

// SplitLocator splits a "container/prefix" locator used by object stores.
// The prefix may be empty or contain further slashes.
func SplitLocator(locator string) (string, string) {
	container, prefix, _ := strings.Cut(strings.TrimPrefix(locator, "/"), "/")
	return container, prefix
}
