package parser

import (
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
)

// ErrNoWorkbookStream indicates an OLE file without a Workbook or Book stream.
var ErrNoWorkbookStream = errors.New("xls file has no workbook stream")

// xlsCursor walks the first sheet of a BIFF (.xls) workbook.
type xlsCursor struct {
	sheet *xls.WorkSheet
	pos   int
	max   int
}

// openXLS opens the first sheet of an xls workbook. The reader panics on
// some corrupt files; those panics are returned as errors.
func openXLS(r io.ReadSeeker) (_ cursor, err error) {
	defer recoverCorrupt(&err)

	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, ErrNoWorkbookStream
	}
	if wb.NumSheets() == 0 {
		return nil, ErrNoSheet
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheet
	}
	return &xlsCursor{sheet: sheet, max: int(sheet.MaxRow)}, nil
}

func (c *xlsCursor) next() bool {
	if c.pos > c.max {
		return false
	}
	c.pos++
	return true
}

// columns returns the current line padded from column 0; a missing row is
// an empty line.
func (c *xlsCursor) columns() (_ []string, err error) {
	defer recoverCorrupt(&err)

	row := rowAt(c.sheet, c.pos-1)
	if row == nil {
		return nil, nil
	}
	cells := make([]string, row.LastCol())
	for col := row.FirstCol(); col < row.LastCol(); col++ {
		cells[col] = row.Col(col)
	}
	return cells, nil
}

// rowAt returns row i, or nil when the sheet has no record for it.
// WorkSheet.Row dereferences the missing row instead of returning nil.
func rowAt(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func (c *xlsCursor) err() error {
	return nil
}

func (c *xlsCursor) close() error {
	return nil
}

func recoverCorrupt(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("corrupt xls workbook: %v", r)
	}
}
