// Package parser decodes spreadsheets into rows and derives join keys.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ukaji3/certissue-go/pkg/certissue/models"
)

// CertificateNumberHeader is the header that carries the join key in
// labeled mode.
const CertificateNumberHeader = "证书编号"

var (
	// ErrTooFewLines indicates the sheet has no data line below the header.
	ErrTooFewLines = errors.New("sheet must contain a header line and at least one data line")
	// ErrMissingKeyHeader indicates the key header is absent in labeled mode.
	ErrMissingKeyHeader = errors.New("key header not found")
	// ErrNoSheet indicates the workbook contains no sheet.
	ErrNoSheet = errors.New("workbook has no sheet")
	// ErrUnsupportedFormat indicates the file is not a known spreadsheet type.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
)

// KeyMode selects how a row's join key is derived.
type KeyMode struct {
	// Header names the key column. Empty means positional mode: the first
	// column holds the key.
	Header string
}

// Positional returns the mode keyed on the first column.
func Positional() KeyMode {
	return KeyMode{}
}

// Labeled returns the mode keyed on the named header.
func Labeled(header string) KeyMode {
	return KeyMode{Header: header}
}

// IsPositional reports whether the first column holds the key.
func (m KeyMode) IsPositional() bool {
	return m.Header == ""
}

// String returns a short description of the mode.
func (m KeyMode) String() string {
	if m.IsPositional() {
		return "positional"
	}
	return fmt.Sprintf("labeled(%s)", m.Header)
}

// cursor walks the raw lines of one sheet.
type cursor interface {
	next() bool
	columns() ([]string, error)
	err() error
	close() error
}

// IsSpreadsheet reports whether name has a spreadsheet extension.
func IsSpreadsheet(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

// RowReader is a lazy, forward-only reader over the data lines of the first
// sheet of a workbook. It cannot be restarted.
type RowReader struct {
	cur     cursor
	mode    KeyMode
	headers []string
	keyCol  int

	pending []string
	hasNext bool

	row  models.Row
	key  string
	line int
	err  error
}

// Open decodes the workbook read from r. The format is chosen from name's
// extension. The header line is consumed immediately; data lines are read
// on demand by Next.
func Open(name string, r io.Reader, mode KeyMode) (*RowReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	var cur cursor
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		cur, err = openXLSX(bytes.NewReader(data))
	case ".xls":
		cur, err = openXLS(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}

	rr := &RowReader{cur: cur, mode: mode}
	if err := rr.readHeader(); err != nil {
		cur.close()
		return nil, err
	}
	return rr, nil
}

// readHeader consumes the header line and makes sure a data line follows.
func (rr *RowReader) readHeader() error {
	if !rr.cur.next() {
		if err := rr.cur.err(); err != nil {
			return err
		}
		return ErrTooFewLines
	}
	cells, err := rr.cur.columns()
	if err != nil {
		return err
	}

	rr.headers = make([]string, len(cells))
	for i, c := range cells {
		rr.headers[i] = cellText(c)
	}

	rr.keyCol = 0
	if !rr.mode.IsPositional() {
		rr.keyCol = -1
		for i, h := range rr.headers {
			if h == rr.mode.Header {
				rr.keyCol = i
				break
			}
		}
		if rr.keyCol < 0 {
			return fmt.Errorf("%w: %q", ErrMissingKeyHeader, rr.mode.Header)
		}
	}

	// A second line must exist even if it later turns out to be blank
	if !rr.cur.next() {
		if err := rr.cur.err(); err != nil {
			return err
		}
		return ErrTooFewLines
	}
	if rr.pending, err = rr.cur.columns(); err != nil {
		return err
	}
	rr.hasNext = true
	rr.line = 1
	return nil
}

// Headers returns the header line, with dropped (empty) headers as "".
func (rr *RowReader) Headers() []string {
	out := make([]string, len(rr.headers))
	copy(out, rr.headers)
	return out
}

// Next advances to the next data line with a non-empty key.
// It returns false at the end of the sheet or on error.
func (rr *RowReader) Next() bool {
	if rr.err != nil {
		return false
	}
	for {
		cells, ok := rr.advance()
		if !ok {
			return false
		}
		key := ""
		if rr.keyCol < len(cells) {
			key = cellText(cells[rr.keyCol])
		}
		if key == "" {
			continue
		}
		rr.key = key
		rr.row = rr.buildRow(cells)
		return true
	}
}

// advance returns the next raw line.
func (rr *RowReader) advance() ([]string, bool) {
	if rr.hasNext {
		rr.hasNext = false
		rr.line++
		return rr.pending, true
	}
	if !rr.cur.next() {
		rr.err = rr.cur.err()
		return nil, false
	}
	cells, err := rr.cur.columns()
	if err != nil {
		rr.err = err
		return nil, false
	}
	rr.line++
	return cells, true
}

// buildRow maps cells onto the headers. Missing cells become "".
func (rr *RowReader) buildRow(cells []string) models.Row {
	row := models.NewRow(len(rr.headers))
	for i, h := range rr.headers {
		if h == "" {
			continue
		}
		value := ""
		if i < len(cells) {
			value = cellText(cells[i])
		}
		row.Set(h, value)
	}
	return row
}

// Row returns the current row.
func (rr *RowReader) Row() models.Row {
	return rr.row
}

// Key returns the current row's join key.
func (rr *RowReader) Key() string {
	return rr.key
}

// Line returns the 1-based sheet line of the current row.
func (rr *RowReader) Line() int {
	return rr.line
}

// Err returns the error that stopped iteration, if any.
func (rr *RowReader) Err() error {
	return rr.err
}

// Close releases the underlying workbook.
func (rr *RowReader) Close() error {
	return rr.cur.close()
}
