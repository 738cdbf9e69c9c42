// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package job

import (
	"errors"
	"strconv"
)

var (
	// ErrInvalidJob is matched by every job validation failure.
	ErrInvalidJob = errors.New("invalid job")
)

// ValidationError reports the job or sub-source field that failed validation.
type ValidationError struct {
	// SubSource is the name of the offending sub-source, empty for top level fields.
	SubSource string
	// Field is the offending field name, empty when the whole payload is malformed.
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := ErrInvalidJob.Error() + ": "
	if e.SubSource != "" {
		msg += "sub-source " + strconv.Quote(e.SubSource) + ": "
	}
	if e.Field != "" {
		msg += "field " + strconv.Quote(e.Field) + ": "
	}

	return msg + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidJob
}

func fieldError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func subSourceError(name, field, reason string) error {
	return &ValidationError{SubSource: name, Field: field, Reason: reason}
}
