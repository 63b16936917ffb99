package util

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

const DefaultSheet = "Sheet1"

// MakeExcelFromData writes a header row followed by one row per record on the default sheet.
func MakeExcelFromData(data [][]interface{}, columns []string) *excelize.File {
	f := excelize.NewFile()
	writeSheet(f, DefaultSheet, columns, data)
	return f
}

// AddSheet appends a named sheet holding columns and data to f.
func AddSheet(f *excelize.File, name string, columns []string, data [][]interface{}) {
	f.NewSheet(name)
	writeSheet(f, name, columns, data)
}

func writeSheet(f *excelize.File, sheet string, columns []string, data [][]interface{}) {
	for i, columnName := range columns {
		axis, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, axis, columnName)
	}
	for row, rowValues := range data {
		for col, val := range rowValues {
			axis, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = f.SetCellValue(sheet, axis, val)
		}
	}
}

// ReadFirstSheet returns every row of the first sheet of the workbook in r.
func ReadFirstSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open workbook")
	}
	defer func() {
		_ = f.Close()
	}()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %q", sheets[0])
	}
	return rows, nil
}
