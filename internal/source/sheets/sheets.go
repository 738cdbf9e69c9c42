// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sheets

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/mapper/functions"
	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
	"github.com/mia-platform/feedagg/internal/source/workspace"
)

const (
	loggerName   = "feedagg:source:sheets"
	defaultRange = "A:ZZ"
)

var _ source.Reader = &Reader{}

// Reader reads the values of a Google spreadsheet. The locator is the spreadsheet id and the
// selector an A1 notation range.
type Reader struct {
	service *sheets.Service
	retrier *workspace.Retrier
}

// NewReader returns a Reader using the read only spreadsheets scope.
func NewReader(ctx context.Context, cfg workspace.Config) (*Reader, error) {
	options, err := cfg.ClientOptions(ctx, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, err
	}

	service, err := sheets.NewService(ctx, options...)
	if err != nil {
		return nil, err
	}

	return &Reader{service: service, retrier: cfg.NewRetrier()}, nil
}

// Read implements source.Reader. Fully empty rows are dropped and cells are trimmed; rows shorter
// than the header are padded with empty strings and longer ones are skipped.
func (r *Reader) Read(ctx context.Context, locator, selector string) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)
	valuesRange := selector
	if valuesRange == "" {
		valuesRange = defaultRange
	}

	response, err := workspace.Do(ctx, r.retrier, func(ctx context.Context) (*sheets.ValueRange, error) {
		return r.service.Spreadsheets.Values.Get(locator, valuesRange).Context(ctx).Do()
	})
	if workspace.IsNotFound(err) {
		log.Warn("spreadsheet not found", "spreadsheetId", locator, "range", valuesRange)
		return record.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet %s: %w", locator, err)
	}

	if len(response.Values) < 2 {
		log.Warn("no data found", "spreadsheetId", locator, "range", valuesRange)
		return record.NewSet(), nil
	}

	set := rowsToSet(response.Values)
	log.Debug("spreadsheet read", "spreadsheetId", locator, "range", valuesRange, "rows", set.Len())
	return set, nil
}

func rowsToSet(values [][]any) *record.Set {
	rows := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		empty := true
		for i, cell := range row {
			cells[i] = strings.TrimSpace(functions.CastToString(cell))
			if cells[i] != "" {
				empty = false
			}
		}
		if !empty {
			rows = append(rows, cells)
		}
	}

	set := record.NewSet()
	if len(rows) == 0 {
		return set
	}

	header := rows[0]
	for _, row := range rows[1:] {
		if len(row) > len(header) {
			continue
		}

		fields := make(map[string]any, len(header))
		for i, column := range header {
			if i < len(row) {
				fields[column] = row[i]
			} else {
				fields[column] = ""
			}
		}
		set.Add(record.New(fields))
	}
	return set
}
