package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Cubanisto31/geoprobe/internal/domain"
)

// requiredQueryColumns must all be present in an external query file; any
// extra columns fold into per-query metadata.
var requiredQueryColumns = []string{"id", "text", "category"}

// LoadQueryFile loads queries from a CSV or XLSX file chosen by extension.
func LoadQueryFile(path string) ([]domain.Query, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return LoadQueriesCSV(path)
	case ".xlsx":
		return LoadQueriesXLSX(path)
	case ".xls":
		return nil, fmt.Errorf("legacy .xls files are not supported, convert %s to .xlsx or .csv", path)
	default:
		return nil, fmt.Errorf("unsupported query file format %q", filepath.Ext(path))
	}
}

// LoadQueriesCSV loads queries from a CSV file with a header row.
func LoadQueriesCSV(path string) ([]domain.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return queriesFromRows(rows, path)
}

// LoadQueriesXLSX loads queries from the first sheet of an XLSX workbook.
func LoadQueriesXLSX(path string) ([]domain.Query, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return queriesFromRows(rows, path)
}

// queriesFromRows converts a header row plus data rows into queries. The
// required columns may appear in any order; unknown columns become metadata
// entries keyed by their header.
func queriesFromRows(rows [][]string, path string) ([]domain.Query, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	header := rows[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	var missing []string
	for _, col := range requiredQueryColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s is missing required columns: %s", path, strings.Join(missing, ", "))
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	queries := make([]domain.Query, 0, len(rows)-1)
	for _, row := range rows[1:] {
		q := domain.Query{
			ID:       cell(row, index["id"]),
			Text:     cell(row, index["text"]),
			Category: cell(row, index["category"]),
			Metadata: domain.Metadata{},
		}
		for name, i := range index {
			switch name {
			case "id", "text", "category":
				continue
			}
			if v := cell(row, i); v != "" {
				q.Metadata[name] = v
			}
		}
		if q.ID == "" {
			continue // skip blank padding rows spreadsheets tend to keep
		}
		queries = append(queries, q)
	}

	return queries, nil
}
