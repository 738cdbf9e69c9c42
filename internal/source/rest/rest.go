// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2"

	"github.com/mia-platform/feedagg/internal/config"
	"github.com/mia-platform/feedagg/internal/info"
	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
	"github.com/mia-platform/feedagg/internal/transport/httpfetch"
)

const (
	loggerName = "feedagg:source:rest"
)

var (
	// ErrInvalidEnvVariable reports malformed environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

// Config holds the settings shared by every REST reader.
type Config struct {
	// TokensFile caches the login tokens of every supplier. Tokens are kept in memory only when empty.
	TokensFile string        `env:"FEEDAGG_REST_TOKENS_FILE"`
	Timeout    time.Duration `env:"FEEDAGG_REST_TIMEOUT" envDefault:"30s"`
}

// ConfigFromEnv parses and validates the configuration from the environment.
func ConfigFromEnv() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	if cfg.Timeout <= 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "FEEDAGG_REST_TIMEOUT must be positive")
	}
	return cfg, nil
}

// Client builds REST readers sharing the same HTTP client and token cache.
type Client struct {
	client *http.Client
	store  *tokenStore
}

// NewClient returns a Client described by cfg. A nil httpClient is replaced by one using the
// configured timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		client: httpClient,
		store:  &tokenStore{path: cfg.TokensFile},
	}
}

// Reader returns the Reader of supplierID.
func (c *Client) Reader(supplierID int, api *config.REST) *Reader {
	return &Reader{
		client:     c.client,
		store:      c.store,
		api:        api,
		supplierID: supplierID,
	}
}

var _ source.Reader = &Reader{}

// Reader pages through the items endpoint of one supplier. A locator holding an absolute URL
// replaces the configured items endpoint; the selector is ignored.
type Reader struct {
	client     *http.Client
	store      *tokenStore
	api        *config.REST
	supplierID int
}

// page is the envelope of one items page.
type page struct {
	Meta struct {
		LastPage json.Number `json:"last_page"`
	} `json:"meta"`
	Links struct {
		Next any `json:"next"`
	} `json:"links"`
}

// Read implements source.Reader. Pagination ends on the last advertised page, on an empty page
// or on any error status; a 404 is the regular end of the items.
func (r *Reader) Read(ctx context.Context, locator, _ string) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	itemsURL := locator
	if !httpfetch.IsRemote(itemsURL) {
		itemsURL = joinURL(r.api.BaseURI, r.api.ItemsURI)
	}

	client := &http.Client{
		Timeout: r.client.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, &loginTokenSource{
				ctx:        ctx,
				client:     r.client,
				api:        r.api,
				supplierID: r.supplierID,
				store:      r.store,
			}),
			Base: r.client.Transport,
		},
	}

	set := record.NewSet()
	lastPage := -1
	for current := 1; lastPage < 0 || current <= lastPage; current++ {
		pageURL, err := withQuery(itemsURL, map[string]string{
			r.api.Pagination.PageParam: strconv.Itoa(current),
			r.api.Pagination.SizeParam: strconv.Itoa(r.api.Pagination.PageSize),
		})
		if err != nil {
			return nil, err
		}

		body, ok, err := r.fetch(ctx, client, pageURL)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		rows := r.extractRows(ctx, body)
		for _, row := range rows {
			set.Add(record.New(row))
		}
		log.Trace("page read", "supplierId", r.supplierID, "page", current, "rows", len(rows))
		if len(rows) == 0 {
			break
		}

		envelope := page{}
		if err := json.Unmarshal(body, &envelope); err != nil {
			log.Trace("pagination hints unreadable", "supplierId", r.supplierID, "page", current, "error", err)
		}
		if last, err := envelope.Meta.LastPage.Int64(); err == nil {
			lastPage = int(last)
		}
		if !hasNext(envelope.Links.Next) && (lastPage < 0 || current >= lastPage) {
			break
		}
	}

	if set.Len() == 0 {
		log.Warn("no data found", "supplierId", r.supplierID, "url", itemsURL)
	}
	return set, nil
}

// fetch returns the body of url. The boolean is false when the status ends the pagination.
func (r *Reader) fetch(ctx context.Context, client *http.Client, pageURL string) ([]byte, bool, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, err
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", info.UserAgent())
	if r.api.Auth.CompanyID != "" {
		request.Header.Set("Company", r.api.Auth.CompanyID)
	}

	response, err := client.Do(request)
	if err != nil {
		return nil, false, fmt.Errorf("requesting %s: %w", pageURL, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", pageURL, err)
	}

	switch {
	case response.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case response.StatusCode == http.StatusUnauthorized:
		log.Error("token rejected", "supplierId", r.supplierID, "url", pageURL)
		if err := r.store.Delete(r.supplierID); err != nil {
			log.Warn("dropping cached token failed", "supplierId", r.supplierID, "error", err)
		}
		return nil, false, nil
	case response.StatusCode >= http.StatusBadRequest:
		log.Error("error status", "supplierId", r.supplierID, "url", pageURL, "status", response.StatusCode)
		return nil, false, nil
	}

	return body, true, nil
}

// extractRows returns the objects listed under the data key, skipping any other value.
func (r *Reader) extractRows(ctx context.Context, body []byte) []map[string]any {
	log := logger.FromContext(ctx).WithName(loggerName)

	payload := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("invalid json", "supplierId", r.supplierID, "error", err, "body", truncate(body))
		return nil
	}

	data, ok := payload[r.api.Pagination.DataKey]
	if !ok {
		keys := make([]string, 0, len(payload))
		for key := range payload {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		log.Warn("data key missing", "supplierId", r.supplierID, "dataKey", r.api.Pagination.DataKey, "keys", keys)
		return nil
	}

	items := []json.RawMessage{}
	if err := json.Unmarshal(data, &items); err != nil {
		log.Warn("data is not a list", "supplierId", r.supplierID, "dataKey", r.api.Pagination.DataKey)
		return nil
	}

	rows := make([]map[string]any, 0, len(items))
	for _, item := range items {
		decoder := json.NewDecoder(bytes.NewReader(item))
		decoder.UseNumber()
		row := map[string]any{}
		if err := decoder.Decode(&row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func hasNext(next any) bool {
	switch value := next.(type) {
	case nil:
		return false
	case string:
		return value != ""
	case bool:
		return value
	default:
		return true
	}
}

// joinURL appends path to base with exactly one slash between them.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// withQuery merges params into the query string of rawURL.
func withQuery(rawURL string, params map[string]string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	query := parsed.Query()
	for key, value := range params {
		query.Set(key, value)
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
