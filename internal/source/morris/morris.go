// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package morris

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName = "feedagg:source:morris"
)

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

type document struct {
	Available []item `xml:"available"`
}

type item struct {
	GTIN  string `xml:"gtin"`
	Qty   string `xml:"qty"`
	Price string `xml:"detail>price"`
}

var _ source.Reader = &Reader{}

// Reader fetches the Morris XML feed and turns each available item into a record with the
// price, gtin and qty fields.
type Reader struct {
	fetcher transport.Fetcher
}

// NewReader returns a Reader downloading the feed through fetcher.
func NewReader(fetcher transport.Fetcher) *Reader {
	return &Reader{fetcher: fetcher}
}

// Read implements source.Reader. The selector is ignored.
func (r *Reader) Read(ctx context.Context, locator, _ string) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	file, err := r.fetcher.Fetch(ctx, locator)
	if errors.Is(err, transport.ErrNoData) {
		log.Warn("no data found", "locator", locator, "reason", err.Error())
		return record.NewSet(), nil
	}
	if err != nil {
		return nil, err
	}

	return Parse(ctx, file.Content)
}

// Parse decodes a Morris XML document. A malformed document or one without available items
// yields an empty set.
func Parse(ctx context.Context, content []byte) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.CharsetReader = charset.NewReaderLabel

	var doc document
	if err := decoder.Decode(&doc); err != nil {
		log.Warn("malformed xml document", "error", err)
		return record.NewSet(), nil
	}
	if len(doc.Available) == 0 {
		log.Warn("xml document without available items")
		return record.NewSet(), nil
	}

	set := record.NewSet()
	for _, entry := range doc.Available {
		set.Add(record.New(map[string]any{
			"price": parseFloat(entry.Price),
			"gtin":  strings.TrimSpace(entry.GTIN),
			"qty":   parseInt(entry.Qty),
		}))
	}

	log.Debug("xml parsed", "rows", set.Len())
	return set, nil
}

// parseFloat reads the leading number of value, 0 when there is none.
func parseFloat(value string) float64 {
	parsed, err := strconv.ParseFloat(leadingNumber.FindString(strings.TrimSpace(value)), 64)
	if err != nil {
		return 0
	}
	return parsed
}

// parseInt reads the leading integer of value, truncating a decimal part, 0 when there is none.
func parseInt(value string) int {
	return int(parseFloat(value))
}
