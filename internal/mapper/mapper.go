// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package mapper

import (
	"context"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/mapper/functions"
	"github.com/mia-platform/feedagg/internal/record"
)

const (
	loggerName = "feedagg:mapper"

	// KeyField is the output field used to deduplicate mapped records.
	KeyField = "upc"
	// SupplierIDField is stamped on every mapped record with the job supplier.
	SupplierIDField = "supplier_id"
	// VersionField is stamped on every mapped record with the job version.
	VersionField = "version"
)

// transform normalizes the raw value of a well-known output field.
type transform func(any) any

// transforms holds the normalization applied by output field name.
// Fields not listed here are copied unchanged.
var transforms = map[string]transform{
	"asin":  functions.ValidateASIN,
	"upc":   func(v any) any { return functions.CleanUPC(v) },
	"price": func(v any) any { return functions.CleanFloat(v) },
	"qty":   func(v any) any { return functions.CleanInteger(v) },
}

// Mapper renames and normalizes raw records according to a ColumnMap.
type Mapper interface {
	// Map converts every row into an output record stamped with supplierID and version, and
	// collects them in a MergeSet keyed on KeyField that applies the column merge rules.
	Map(ctx context.Context, rows *record.Set, supplierID, version int) (*record.MergeSet, error)
}

var _ Mapper = &internalMapper{}

// internalMapper is the default implementation of the Mapper interface.
type internalMapper struct {
	columns *ColumnMap
}

// New creates a Mapper for the given columns.
func New(columns *ColumnMap) Mapper {
	return &internalMapper{columns: columns}
}

// Map implements Mapper. If any row lacks one of the mapped source fields the whole batch is
// rejected with a MissingFieldsError listing every offending row.
func (m *internalMapper) Map(ctx context.Context, rows *record.Set, supplierID, version int) (*record.MergeSet, error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	if !m.columns.Has(KeyField) {
		log.Warn("column map does not produce the key field, every record will be dropped", "keyField", KeyField)
	}

	output := record.NewMergeSet(KeyField, m.columns.Rules())
	missingRows := make([]MissingRow, 0)
	for index, row := range rows.All() {
		mapped, missing := m.mapRow(row)
		if len(missing) > 0 {
			missingRows = append(missingRows, MissingRow{
				Index:   index,
				Missing: missing,
				Fields:  row.Fields(),
			})
			continue
		}

		mapped.Set(SupplierIDField, supplierID)
		mapped.Set(VersionField, version)
		output.Insert(mapped)
	}

	if len(missingRows) > 0 {
		err := &MissingFieldsError{SupplierID: supplierID, Rows: missingRows}
		log.Debug("rows missing mapped fields", "supplierId", supplierID, "missingFields", err.MissingFields(), "rows", len(missingRows))
		return nil, err
	}

	if skipped := output.Skipped(); len(skipped) > 0 {
		log.Debug("mapped records without key dropped", "supplierId", supplierID, "count", len(skipped))
	}

	log.Trace("rows mapped", "supplierId", supplierID, "input", rows.Len(), "output", output.Len())
	return output, nil
}

// mapRow builds the output record for row and returns the source fields it lacks.
func (m *internalMapper) mapRow(row *record.Record) (*record.Record, []string) {
	mapped := record.New(nil)
	var missing []string
	for _, column := range m.columns.columns {
		raw, ok := row.Lookup(column.Source)
		if !ok {
			missing = append(missing, column.Source)
		}

		if fn, ok := transforms[column.Target]; ok {
			mapped.Set(column.Target, fn(raw))
			continue
		}
		mapped.Set(column.Target, raw)
	}

	return mapped, missing
}
