// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/mia-platform/feedagg/internal/info"
	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName     = "feedagg:transport:http"
	defaultTimeout = 2 * time.Minute
)

var _ transport.Fetcher = &Fetcher{}

// Fetcher downloads files over HTTP(S). Locators without an http or https scheme are read
// from the local file system.
type Fetcher struct {
	client *http.Client
}

// New returns a Fetcher using client, or a client with a default timeout when nil.
func New(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Fetcher{client: client}
}

// IsRemote reports whether locator must be downloaded over HTTP.
func IsRemote(locator string) bool {
	lower := strings.ToLower(locator)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetch implements transport.Fetcher. A response other than 200 or an empty body is reported
// as transport.ErrNoData, network failures are returned as they are.
func (f *Fetcher) Fetch(ctx context.Context, locator string) (*transport.File, error) {
	if !IsRemote(locator) {
		return readLocalFile(locator)
	}

	log := logger.FromContext(ctx).WithName(loggerName)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("User-Agent", info.UserAgent())

	log.Trace("downloading file", "url", locator)
	resp, err := f.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn("unexpected response status", "url", locator, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s answered %d", transport.ErrNoData, locator, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		log.Warn("empty response body", "url", locator)
		return nil, fmt.Errorf("%w: %s answered with an empty body", transport.ErrNoData, locator)
	}

	log.Debug("file downloaded", "url", locator, "size", len(content))
	return &transport.File{Name: fileName(resp.Request.URL), Content: content}, nil
}

func readLocalFile(locator string) (*transport.File, error) {
	content, err := os.ReadFile(locator)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", transport.ErrNoData, locator)
	}
	return &transport.File{Name: filepath.Base(locator), Content: content}, nil
}

func fileName(u *url.URL) string {
	if u == nil {
		return ""
	}
	return path.Base(u.Path)
}
