// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrUnsupportedSourceType is matched when a job names a source type with no registered reader.
	ErrUnsupportedSourceType = errors.New("unsupported source type")
	// ErrReaderFailure is matched when a reader could not be created or failed while reading.
	ErrReaderFailure = errors.New("reader failure")
	// ErrEmitFailure is matched when the destination did not acknowledge a record.
	ErrEmitFailure = errors.New("emit failure")
)

// unsupportedSourceError signals that no reader is registered for the requested source type.
type unsupportedSourceError struct {
	// TypeID is nil when the job names no source type.
	TypeID    *int
	SubSource string
}

func (e *unsupportedSourceError) Error() string {
	msg := "no source type given"
	if e.TypeID != nil {
		msg = "no reader registered for source type " + strconv.Itoa(*e.TypeID)
	}
	if e.SubSource != "" {
		msg += " of sub-source " + strconv.Quote(e.SubSource)
	}
	return msg
}

func (e *unsupportedSourceError) Unwrap() []error {
	return []error{ErrUnsupportedSourceType, errors.ErrUnsupported}
}

// readerFailure wraps err as a reader failure for the named source.
func readerFailure(name string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrReaderFailure, name, err)
}

// emitFailure wraps err as a delivery failure of the record stored under key.
func emitFailure(key string, err error) error {
	return fmt.Errorf("%w: record %q: %w", ErrEmitFailure, key, err)
}
