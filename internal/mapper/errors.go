// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package mapper

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMappingShape is matched by errors caused by malformed column_map_rules entries.
	ErrInvalidMappingShape = errors.New("invalid mapping shape")
	// ErrMissingMappedFields is matched by errors caused by rows lacking mapped source fields.
	ErrMissingMappedFields = errors.New("missing mapped fields")
)

// Ensure the error types implement the error interface.
var (
	_ error = &ShapeError{}
	_ error = &MissingFieldsError{}
)

const (
	maxReportedRows = 5
)

// ShapeError reports one or more column_map_rules entries that cannot be used.
type ShapeError struct {
	msg string
	err error
}

// NewShapeError wraps err, usually the join of every malformed entry, in a ShapeError.
func NewShapeError(err error) *ShapeError {
	msg := ErrInvalidMappingShape.Error()
	if err != nil {
		msg = msg + "\n" + err.Error()
	}

	return &ShapeError{
		msg: msg,
		err: err,
	}
}

func (e *ShapeError) Error() string {
	return e.msg
}

func (e *ShapeError) Unwrap() []error {
	if e.err == nil {
		return []error{ErrInvalidMappingShape}
	}
	return []error{ErrInvalidMappingShape, e.err}
}

// MissingRow describes a raw row that lacks at least one mapped source field.
type MissingRow struct {
	Index   int
	Missing []string
	Fields  map[string]any
}

// MissingFieldsError collects every row missing some mapped source fields.
type MissingFieldsError struct {
	SupplierID int
	Rows       []MissingRow
}

func (e *MissingFieldsError) Error() string {
	builder := new(strings.Builder)
	fmt.Fprintf(builder, "%s: supplier %d, %d rows", ErrMissingMappedFields, e.SupplierID, len(e.Rows))
	for i, row := range e.Rows {
		if i == maxReportedRows {
			fmt.Fprintf(builder, "; and %d more", len(e.Rows)-maxReportedRows)
			break
		}
		fmt.Fprintf(builder, "; row %d: %s", row.Index, strings.Join(row.Missing, ", "))
	}

	return builder.String()
}

func (e *MissingFieldsError) Unwrap() error {
	return ErrMissingMappedFields
}

// MissingFields returns the distinct missing source fields across all rows, in order of appearance.
func (e *MissingFieldsError) MissingFields() []string {
	seen := make(map[string]struct{})
	fields := make([]string, 0)
	for _, row := range e.Rows {
		for _, field := range row.Missing {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			fields = append(fields, field)
		}
	}

	return fields
}
