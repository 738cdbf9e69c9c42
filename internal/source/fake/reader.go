// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
)

var _ source.Reader = &FakeReader{}

// Call records the arguments of one Read invocation.
type Call struct {
	Locator  string
	Selector string
}

// FakeReader returns canned rows per locator and records every call.
type FakeReader struct {
	tb testing.TB

	rows map[string][]map[string]any
	err  error

	lock  sync.Mutex
	Calls []Call
}

// NewFakeReader returns a reader answering each locator with the given rows.
// Unknown locators yield an empty set.
func NewFakeReader(tb testing.TB, rows map[string][]map[string]any) *FakeReader {
	tb.Helper()
	return &FakeReader{tb: tb, rows: rows}
}

// NewFakeReaderWithError returns a reader failing every call with err.
func NewFakeReaderWithError(tb testing.TB, err error) *FakeReader {
	tb.Helper()
	return &FakeReader{tb: tb, err: err}
}

// Read implements source.Reader.
func (f *FakeReader) Read(ctx context.Context, locator, selector string) (*record.Set, error) {
	f.tb.Helper()

	f.lock.Lock()
	f.Calls = append(f.Calls, Call{Locator: locator, Selector: selector})
	f.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.err != nil {
		return nil, f.err
	}

	return record.NewSetFromMaps(f.rows[locator]), nil
}

// CallCount returns the number of Read invocations so far.
func (f *FakeReader) CallCount() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return len(f.Calls)
}
