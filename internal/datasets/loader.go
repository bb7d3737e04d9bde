package datasets

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/vinodismyname/mcpclick/internal/clickstream"
)

// LoadFrame reads a raw event table from a .csv, .tsv, or .xlsx file. The
// first row is treated as the header. It returns the frame together with a
// version derived from the file's modification time, used to detect stale
// pagination cursors.
func LoadFrame(path string) (clickstream.Frame, int64, error) {
	version, err := sourceVersion(path)
	if err != nil {
		return clickstream.Frame{}, 0, fmt.Errorf("datasets: stat %s: %w", path, err)
	}

	var frame clickstream.Frame
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		frame, err = readDelimited(path, ',')
	case ".tsv":
		frame, err = readDelimited(path, '\t')
	case ".xlsx":
		frame, err = readWorkbook(path)
	default:
		return clickstream.Frame{}, 0, fmt.Errorf("datasets: unsupported format: %s", ext)
	}
	if err != nil {
		return clickstream.Frame{}, 0, err
	}
	return frame, version, nil
}

// sourceVersion derives the cache version for a dataset file from its
// modification time.
func sourceVersion(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixNano(), nil
}

func readDelimited(path string, sep rune) (clickstream.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return clickstream.Frame{}, fmt.Errorf("datasets: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = sep
	// Event exports can carry ragged rows; schema checks happen downstream.
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return clickstream.Frame{}, fmt.Errorf("datasets: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return clickstream.Frame{}, fmt.Errorf("datasets: %s has no header row", path)
	}
	return clickstream.Frame{Columns: records[0], Rows: records[1:]}, nil
}

// readWorkbook streams the first sheet of an XLSX workbook row by row.
func readWorkbook(path string) (clickstream.Frame, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return clickstream.Frame{}, fmt.Errorf("datasets: open %s: %w", path, err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return clickstream.Frame{}, fmt.Errorf("datasets: %s has no sheets", path)
	}

	rows, err := wb.Rows(sheets[0])
	if err != nil {
		return clickstream.Frame{}, fmt.Errorf("datasets: read sheet %q: %w", sheets[0], err)
	}
	defer rows.Close()

	var frame clickstream.Frame
	first := true
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return clickstream.Frame{}, fmt.Errorf("datasets: read sheet %q: %w", sheets[0], err)
		}
		if first {
			frame.Columns = cols
			first = false
			continue
		}
		frame.Rows = append(frame.Rows, cols)
	}
	if err := rows.Error(); err != nil {
		return clickstream.Frame{}, fmt.Errorf("datasets: read sheet %q: %w", sheets[0], err)
	}
	if first {
		return clickstream.Frame{}, fmt.Errorf("datasets: %s has no header row", path)
	}
	return frame, nil
}
