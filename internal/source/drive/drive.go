// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package drive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"

	"google.golang.org/api/drive/v3"

	"github.com/mia-platform/feedagg/internal/logger"
	"github.com/mia-platform/feedagg/internal/record"
	"github.com/mia-platform/feedagg/internal/source"
	"github.com/mia-platform/feedagg/internal/source/tabular"
	"github.com/mia-platform/feedagg/internal/source/workspace"
	"github.com/mia-platform/feedagg/internal/transport"
)

const (
	loggerName = "feedagg:source:drive"

	mimeCSV               = "text/csv"
	mimeGoogleSpreadsheet = "application/vnd.google-apps.spreadsheet"
)

var excelMimeTypes = []string{
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var _ source.Reader = &Reader{}

// Reader reads the most recently modified file of a Drive folder. The locator is the folder id.
type Reader struct {
	service *drive.Service
	retrier *workspace.Retrier
}

// NewReader returns a Reader using the read only drive scope.
func NewReader(ctx context.Context, cfg workspace.Config) (*Reader, error) {
	options, err := cfg.ClientOptions(ctx, drive.DriveReadonlyScope)
	if err != nil {
		return nil, err
	}

	service, err := drive.NewService(ctx, options...)
	if err != nil {
		return nil, err
	}

	return &Reader{service: service, retrier: cfg.NewRetrier()}, nil
}

// Read implements source.Reader. CSV and Excel files are recognized by extension or MIME type,
// native spreadsheets are exported as CSV. Any other file yields an empty set.
func (r *Reader) Read(ctx context.Context, locator, selector string) (*record.Set, error) {
	log := logger.FromContext(ctx).WithName(loggerName)

	list, err := workspace.Do(ctx, r.retrier, func(ctx context.Context) (*drive.FileList, error) {
		return r.service.Files.List().
			Q(fmt.Sprintf("'%s' in parents and trashed=false", strings.ReplaceAll(locator, "'", `\'`))).
			Fields("files(id, name, mimeType, modifiedTime)").
			OrderBy("modifiedTime desc").
			PageSize(1).
			Context(ctx).
			Do()
	})
	if workspace.IsNotFound(err) {
		log.Warn("folder not found", "folderId", locator)
		return record.NewSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing folder %s: %w", locator, err)
	}

	if len(list.Files) == 0 {
		log.Warn("no files found in folder", "folderId", locator)
		return record.NewSet(), nil
	}

	file := list.Files[0]
	format, export, ok := fileFormat(file)
	if !ok {
		log.Warn("unsupported file type", "folderId", locator, "file", file.Name, "mimeType", file.MimeType)
		return record.NewSet(), nil
	}

	content, err := workspace.Do(ctx, r.retrier, func(ctx context.Context) ([]byte, error) {
		var response *http.Response
		var err error
		if export {
			response, err = r.service.Files.Export(file.Id, mimeCSV).Context(ctx).Download()
		} else {
			response, err = r.service.Files.Get(file.Id).Context(ctx).Download()
		}
		if err != nil {
			return nil, err
		}
		defer response.Body.Close()
		return io.ReadAll(response.Body)
	})
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", file.Name, err)
	}

	log.Debug("file downloaded", "folderId", locator, "file", file.Name, "size", len(content))
	return tabular.Parse(ctx, &transport.File{Name: file.Name, Content: content}, format, selector)
}

// fileFormat returns how file must be parsed and whether it must be exported first.
func fileFormat(file *drive.File) (tabular.Format, bool, bool) {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(file.Name), "."))
	switch {
	case file.MimeType == mimeGoogleSpreadsheet:
		return tabular.FormatCSV, true, true
	case ext == "csv" || strings.Contains(file.MimeType, mimeCSV):
		return tabular.FormatCSV, false, true
	case ext == "xls" || ext == "xlsx" || slices.Contains(excelMimeTypes, file.MimeType):
		return tabular.FormatExcel, false, true
	default:
		return tabular.FormatAuto, false, false
	}
}
