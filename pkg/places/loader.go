package places

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/swissmobility/heatmap-fetcher/pkg/logging"
)

// DefaultWorkbookURL is the federal statistics office download for the
// official commune register.
const DefaultWorkbookURL = "https://www.bfs.admin.ch/bfsstatic/dam/assets/11467406/master"

// workbookSheet is the sheet holding the commune register; nameColumn and
// idColumn are its relevant headers.
const (
	workbookSheet = "GDE"
	nameColumn    = "GDENAME"
	idColumn      = "GDENR"
)

// LoadWorkbook parses the commune reference workbook into the in-memory
// place table.
func LoadWorkbook(path string) ([]Place, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(workbookSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", workbookSheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", workbookSheet)
	}

	nameIdx, idIdx := -1, -1
	for i, header := range rows[0] {
		switch header {
		case nameColumn:
			nameIdx = i
		case idColumn:
			idIdx = i
		}
	}
	if nameIdx < 0 || idIdx < 0 {
		return nil, fmt.Errorf("sheet %s missing %s/%s columns", workbookSheet, nameColumn, idColumn)
	}

	places := make([]Place, 0, len(rows)-1)
	for rowNum, row := range rows[1:] {
		if nameIdx >= len(row) || idIdx >= len(row) || row[nameIdx] == "" {
			continue
		}
		id, err := strconv.ParseInt(row[idIdx], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("row %d: parse %s %q: %w", rowNum+2, idColumn, row[idIdx], err)
		}
		places = append(places, Place{Name: row[nameIdx], OfficialID: int32(id)})
	}
	return places, nil
}

// DownloadWorkbook fetches the commune workbook to path, writing
// atomically so an interrupted download never looks complete.
func DownloadWorkbook(ctx context.Context, url, path string) error {
	logger := logging.NewLogger("workbook")
	logger.Info().Str("url", url).Msg("Downloading commune workbook")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download workbook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download workbook: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create workbook directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".workbook-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close workbook file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename workbook file: %w", err)
	}

	logger.Info().Str("path", path).Msg("Commune workbook downloaded")
	return nil
}
