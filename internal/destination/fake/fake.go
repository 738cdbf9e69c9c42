// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/feedagg/internal/destination"
)

var _ destination.ClosableSender = &FakeDestination{}

// FakeDestination keeps every sent record in memory.
// When Err is set, every call after the first FailAfter accepted records fails with Err.
type FakeDestination struct {
	tb testing.TB

	FailAfter int
	Err       error

	lock     sync.Mutex
	SentData []*destination.Data
	Closed   bool
}

// NewFakeDestination returns an always succeeding FakeDestination.
func NewFakeDestination(tb testing.TB) *FakeDestination {
	tb.Helper()
	return &FakeDestination{tb: tb}
}

// NewFailingDestination returns a FakeDestination accepting failAfter records before failing with err.
func NewFailingDestination(tb testing.TB, failAfter int, err error) *FakeDestination {
	tb.Helper()
	return &FakeDestination{tb: tb, FailAfter: failAfter, Err: err}
}

// SendData implements destination.Sender.
func (f *FakeDestination) SendData(_ context.Context, data *destination.Data) error {
	f.tb.Helper()
	f.lock.Lock()
	defer f.lock.Unlock()

	if f.Err != nil && len(f.SentData) >= f.FailAfter {
		return f.Err
	}
	f.SentData = append(f.SentData, data)
	return nil
}

// Close implements destination.ClosableSender.
func (f *FakeDestination) Close(context.Context) error {
	f.tb.Helper()
	f.lock.Lock()
	defer f.lock.Unlock()
	f.Closed = true
	return nil
}
