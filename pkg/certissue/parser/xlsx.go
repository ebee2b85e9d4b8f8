package parser

import (
	"errors"
	"io"

	"github.com/xuri/excelize/v2"
)

// xlsxCursor streams the first sheet of an OOXML workbook.
type xlsxCursor struct {
	f    *excelize.File
	rows *excelize.Rows
}

// openXLSX opens the first sheet of an xlsx workbook.
func openXLSX(r io.Reader) (cursor, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}

	// Only the first sheet is read
	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		f.Close()
		return nil, ErrNoSheet
	}

	rows, err := f.Rows(sheetList[0])
	if err != nil {
		f.Close()
		return nil, err
	}
	return &xlsxCursor{f: f, rows: rows}, nil
}

func (c *xlsxCursor) next() bool {
	return c.rows.Next()
}

// columns returns raw cell values so numbers are not run through the
// cell's display format.
func (c *xlsxCursor) columns() ([]string, error) {
	return c.rows.Columns(excelize.Options{RawCellValue: true})
}

func (c *xlsxCursor) err() error {
	return c.rows.Error()
}

func (c *xlsxCursor) close() error {
	return errors.Join(c.rows.Close(), c.f.Close())
}
