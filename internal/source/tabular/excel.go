// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package tabular

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/record"
)

var (
	rectangleRange = regexp.MustCompile(`^[A-Z]+[0-9]+:[A-Z]+[0-9]+$`)
	columnsRange   = regexp.MustCompile(`^([A-Z]+):([A-Z]+)$`)
	openEndRange   = regexp.MustCompile(`^([A-Z]+[0-9]+):([A-Z]+)$`)
	columnRange    = regexp.MustCompile(`^([A-Z]+)$`)
	cellRange      = regexp.MustCompile(`^([A-Z]+[0-9]+)$`)
)

// ParseExcel parses a workbook. The selector is an optional "Sheet!A1:I500" range: the sheet
// defaults to the active one and open ranges such as "A:I", "A1:I" or "I" extend to the last
// used row. Rows shorter than the header are padded with nil, longer ones are skipped.
func ParseExcel(ctx context.Context, name string, content []byte, selector string) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	workbook, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", name, err)
	}
	defer workbook.Close()

	sheet, address := splitSelector(selector)
	sheet = resolveSheet(ctx, workbook, sheet, name)

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q of %s: %w", sheet, name, err)
	}

	if address != "" {
		normalized := normalizeRange(address, len(rows))
		ranged, err := extractRange(rows, normalized)
		if err != nil {
			log.Warn("invalid range, reading the whole sheet", "file", name, "range", normalized, "error", err)
		} else {
			rows = ranged
		}
	}

	if len(rows) < 2 {
		log.Warn("not enough rows", "file", name, "sheet", sheet)
		return record.NewSet(), nil
	}

	header := trimHeader(rows[0])
	set := record.NewSet()
	skipped := 0
	for _, row := range rows[1:] {
		if len(row) > len(header) {
			skipped++
			continue
		}

		fields := make(map[string]any, len(header))
		for i, column := range header {
			if i < len(row) {
				fields[column] = row[i]
			} else {
				fields[column] = nil
			}
		}
		set.Add(record.New(fields))
	}

	if skipped > 0 {
		log.Warn("rows longer than the header skipped", "file", name, "skipped", skipped)
	}

	log.Debug("workbook parsed", "file", name, "sheet", sheet, "rows", set.Len())
	return set, nil
}

// splitSelector separates the optional sheet name from the cell address.
func splitSelector(selector string) (string, string) {
	selector = strings.TrimSpace(selector)
	sheet, address, found := strings.Cut(selector, "!")
	if !found {
		return "", selector
	}
	return strings.TrimSpace(sheet), strings.TrimSpace(address)
}

// resolveSheet returns sheet when the workbook has it, the active sheet otherwise.
func resolveSheet(ctx context.Context, workbook *excelize.File, sheet, name string) string {
	active := workbook.GetSheetName(workbook.GetActiveSheetIndex())
	if sheet == "" {
		return active
	}

	if index, err := workbook.GetSheetIndex(sheet); err != nil || index < 0 {
		logger.FromContext(ctx).WithName(loggerName).Warn("sheet not found, using the active sheet", "file", name, "sheet", sheet, "active", active)
		return active
	}
	return sheet
}

// normalizeRange expands open ranges to a rectangle ending at highestRow.
// Unknown formats are returned unchanged.
func normalizeRange(address string, highestRow int) string {
	address = strings.ToUpper(strings.TrimSpace(address))
	highestRow = max(1, highestRow)

	switch {
	case address == "", rectangleRange.MatchString(address), cellRange.MatchString(address):
		return address
	case columnsRange.MatchString(address):
		m := columnsRange.FindStringSubmatch(address)
		return fmt.Sprintf("%s1:%s%d", m[1], m[2], highestRow)
	case openEndRange.MatchString(address):
		m := openEndRange.FindStringSubmatch(address)
		return fmt.Sprintf("%s:%s%d", m[1], m[2], highestRow)
	case columnRange.MatchString(address):
		m := columnRange.FindStringSubmatch(address)
		return fmt.Sprintf("%s1:%s%d", m[1], m[1], highestRow)
	default:
		return address
	}
}

// extractRange returns the rectangle of rows addressed by a normalized range, padding missing
// cells with empty strings.
func extractRange(rows [][]string, address string) ([][]string, error) {
	from, to, found := strings.Cut(address, ":")
	if !found {
		to = from
	}

	startCol, startRow, err := excelize.CellNameToCoordinates(from)
	if err != nil {
		return nil, err
	}
	endCol, endRow, err := excelize.CellNameToCoordinates(to)
	if err != nil {
		return nil, err
	}
	if endCol < startCol {
		startCol, endCol = endCol, startCol
	}
	if endRow < startRow {
		startRow, endRow = endRow, startRow
	}

	ranged := make([][]string, 0, endRow-startRow+1)
	for rowNumber := startRow; rowNumber <= endRow; rowNumber++ {
		cells := make([]string, endCol-startCol+1)
		if rowNumber <= len(rows) {
			row := rows[rowNumber-1]
			for col := startCol; col <= endCol; col++ {
				if col <= len(row) {
					cells[col-startCol] = row[col-1]
				}
			}
		}
		ranged = append(ranged, cells)
	}
	return ranged, nil
}
