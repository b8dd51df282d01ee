// Package ingest converts external observation formats (CSV, Excel, JSON
// column maps) into the engine's observation table, inferring each column's
// semantic type from its values.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"gocause/domain/table"
	"gocause/internal/errors"
)

// ReadCSV parses CSV content whose first record holds column names.
func ReadCSV(r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse CSV observations")
	}
	if len(records) < 1 {
		return nil, errors.InvalidInput("CSV observations need a header row")
	}
	return fromRecords(records[0], records[1:])
}

// ReadCSVFile reads a CSV observation file from disk.
func ReadCSVFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open observation file %s", path)
	}
	defer f.Close()
	return ReadCSV(f)
}

// FromColumnMap builds a table from a JSON-style column map (variable name →
// list of values). Columns are ordered alphabetically so ingestion is
// deterministic regardless of map iteration order.
func FromColumnMap(columns map[string][]any) (*table.Table, error) {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([][]string, len(names))
	for i, name := range names {
		col := make([]string, len(columns[name]))
		for j, v := range columns[name] {
			col[j] = stringify(v)
		}
		values[i] = col
	}
	return table.FromStringColumns(names, values)
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}

func fromRecords(header []string, rows [][]string) (*table.Table, error) {
	values := make([][]string, len(header))
	for i := range values {
		values[i] = make([]string, 0, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(header) {
			return nil, errors.InvalidInput(fmt.Sprintf("row %d has %d fields, expected %d", r+1, len(row), len(header)))
		}
		for i, v := range row {
			values[i] = append(values[i], v)
		}
	}
	return table.FromStringColumns(header, values)
}
