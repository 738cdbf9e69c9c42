// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package tabular

import (
	"context"
	"errors"
	"fmt"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName = "feedagg:source:tabular"
)

//go:generate ${TOOLS_BIN}/stringer -type=Format
type Format int

const (
	// FormatAuto picks the parser from the file extension, falling back to CSV.
	FormatAuto Format = iota
	FormatCSV
	FormatExcel
)

var _ source.Reader = &Reader{}

// Reader fetches a file through a transport and parses it in a fixed format.
type Reader struct {
	fetcher transport.Fetcher
	format  Format
}

// NewReader returns a Reader parsing files downloaded by fetcher as format.
func NewReader(fetcher transport.Fetcher, format Format) *Reader {
	return &Reader{fetcher: fetcher, format: format}
}

// Read implements source.Reader. Locations holding no data yield an empty set.
func (r *Reader) Read(ctx context.Context, locator, selector string) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	file, err := r.fetcher.Fetch(ctx, locator)
	if errors.Is(err, transport.ErrNoData) {
		log.Warn("no data found", "locator", locator, "reason", err.Error())
		return record.NewSet(), nil
	}
	if err != nil {
		return nil, err
	}

	return Parse(ctx, file, r.format, selector)
}

// Parse parses file in the given format.
func Parse(ctx context.Context, file *transport.File, format Format, selector string) (*record.Set, error) {
	if format == FormatAuto {
		format = FormatOf(file)
	}

	switch format {
	case FormatExcel:
		return ParseExcel(ctx, file.Name, file.Content, selector)
	case FormatCSV:
		return ParseCSV(ctx, file.Name, file.Content)
	default:
		return nil, fmt.Errorf("unknown tabular format %d", format)
	}
}

// FormatOf guesses the format of file from its extension.
func FormatOf(file *transport.File) Format {
	switch file.Ext() {
	case "xlsx", "xlsm", "xltx", "xltm":
		return FormatExcel
	default:
		return FormatCSV
	}
}
