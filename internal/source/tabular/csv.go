// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package tabular

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/record"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV parses a CSV document. Content that is not valid UTF-8 is decoded as Windows-1252.
// Rows whose column count differs from the header are skipped.
func ParseCSV(ctx context.Context, name string, content []byte) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	content, err := decodeText(content)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", name, err)
	}

	content = bytes.TrimSpace(bytes.TrimPrefix(content, utf8BOM))
	firstLine, _, _ := bytes.Cut(content, []byte("\n"))

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = detectDelimiter(string(firstLine))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		log.Warn("not enough rows", "file", name)
		return record.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s header: %w", name, err)
	}
	header = trimHeader(header)

	set := record.NewSet()
	skipped := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}

		if len(row) != len(header) {
			skipped++
			continue
		}

		fields := make(map[string]any, len(header))
		for i, column := range header {
			fields[column] = row[i]
		}
		set.Add(record.New(fields))
	}

	if set.Len() == 0 && skipped == 0 {
		log.Warn("not enough rows", "file", name)
	}
	if skipped > 0 {
		log.Info("rows with mismatching columns skipped", "file", name, "skipped", skipped)
	}

	log.Debug("csv parsed", "file", name, "rows", set.Len())
	return set, nil
}

func decodeText(content []byte) ([]byte, error) {
	if utf8.Valid(content) {
		return content, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(content)
}

// detectDelimiter picks the most frequent separator of the header line, defaulting to comma.
func detectDelimiter(line string) rune {
	delimiter := ','
	best := strings.Count(line, ",")
	for _, candidate := range []rune{';', '\t', '|'} {
		if count := strings.Count(line, string(candidate)); count > best {
			delimiter, best = candidate, count
		}
	}
	return delimiter
}

func trimHeader(header []string) []string {
	trimmed := make([]string, len(header))
	for i, column := range header {
		trimmed[i] = strings.TrimSpace(column)
	}
	return trimmed
}
