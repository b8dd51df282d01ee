package ingest

import (
	"github.com/xuri/excelize/v2"

	"gocause/domain/table"
	"gocause/internal/errors"
)

// ReadExcel reads observations from the first sheet of an Excel workbook,
// treating the first row as column names. Short rows are padded with empty
// cells the way excelize reports them.
func ReadExcel(path string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open Excel workbook %s", path)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.InvalidInput("Excel workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheet)
	}
	if len(rows) < 1 {
		return nil, errors.InvalidInput("Excel observations need a header row")
	}

	header := rows[0]
	padded := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(header) {
			grown := make([]string, len(header))
			copy(grown, row)
			row = grown
		}
		padded = append(padded, row[:len(header)])
	}
	return fromRecords(header, padded)
}
