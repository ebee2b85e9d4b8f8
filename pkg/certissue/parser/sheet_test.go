package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes lines into Sheet1 of a new workbook and returns the
// encoded xlsx bytes.
func buildWorkbook(t *testing.T, lines [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		line := line
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &line))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func readAll(t *testing.T, rr *RowReader) (keys []string, rows []map[string]string) {
	t.Helper()
	for rr.Next() {
		keys = append(keys, rr.Key())
		m := make(map[string]string)
		row := rr.Row()
		for _, h := range row.Columns() {
			m[h] = row.Value(h)
		}
		rows = append(rows, m)
	}
	require.NoError(t, rr.Err())
	return keys, rows
}

func TestOpen_LabeledMode(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"证书编号", "姓名"},
		{"A1", "Alice"},
		{"A2", "Bob"},
	})

	rr, err := Open("students.xlsx", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	require.NoError(t, err)
	defer rr.Close()

	keys, rows := readAll(t, rr)
	assert.Equal(t, []string{"A1", "A2"}, keys)
	assert.Equal(t, []map[string]string{
		{"证书编号": "A1", "姓名": "Alice"},
		{"证书编号": "A2", "姓名": "Bob"},
	}, rows)

	// Non-restartable
	assert.False(t, rr.Next())
}

func TestOpen_PositionalMode(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"ID", "Name", "Score"},
		{202001, "Alice", 95.5},
		{202002, "Bob"},
	})

	rr, err := Open("students.xlsx", bytes.NewReader(data), Positional())
	require.NoError(t, err)
	defer rr.Close()

	keys, rows := readAll(t, rr)
	assert.Equal(t, []string{"202001", "202002"}, keys)
	assert.Equal(t, "95.5", rows[0]["Score"])
	// Missing trailing cell becomes empty text
	v, ok := rows[1]["Score"]
	assert.True(t, ok)
	assert.Equal(t, "", v)
}

func TestOpen_ColumnOrderPreserved(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"姓名", "证书编号", "专业"},
		{"Alice", "A1", "软件工程"},
	})

	rr, err := Open("students.xlsx", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	require.NoError(t, err)
	defer rr.Close()

	require.True(t, rr.Next())
	assert.Equal(t, []string{"姓名", "证书编号", "专业"}, rr.Row().Columns())
	assert.Equal(t, 2, rr.Line())
}

func TestOpen_SkipsEmptyKeys(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"证书编号", "姓名"},
		{"", "Nobody"},
		{"A2", "Bob"},
	})

	rr, err := Open("students.xlsx", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	require.NoError(t, err)
	defer rr.Close()

	keys, _ := readAll(t, rr)
	assert.Equal(t, []string{"A2"}, keys)
}

func TestOpen_DropsEmptyHeaders(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"证书编号", "", "姓名"},
		{"A1", "ignored", "Alice"},
	})

	rr, err := Open("students.xlsx", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	require.NoError(t, err)
	defer rr.Close()

	require.True(t, rr.Next())
	assert.Equal(t, []string{"证书编号", "姓名"}, rr.Row().Columns())
}

func TestOpen_HeaderOnly(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"证书编号", "姓名"},
	})

	_, err := Open("students.xlsx", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	assert.ErrorIs(t, err, ErrTooFewLines)
}

func TestOpen_EmptySheet(t *testing.T) {
	data := buildWorkbook(t, nil)

	_, err := Open("students.xlsx", bytes.NewReader(data), Positional())
	assert.ErrorIs(t, err, ErrTooFewLines)
}

func TestOpen_MissingKeyHeader(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"编号", "姓名"},
		{"A1", "Alice"},
	})

	_, err := Open("students.xlsx", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	assert.ErrorIs(t, err, ErrMissingKeyHeader)
}

func TestOpen_FirstSheetOnly(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"证书编号"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"A1"}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]interface{}{"证书编号"}))
	require.NoError(t, f.SetSheetRow("Other", "A2", &[]interface{}{"B1"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	rr, err := Open("students.xlsx", bytes.NewReader(buf.Bytes()), Labeled(CertificateNumberHeader))
	require.NoError(t, err)
	defer rr.Close()

	keys, _ := readAll(t, rr)
	assert.Equal(t, []string{"A1"}, keys)
}

func TestOpen_UnsupportedFormat(t *testing.T) {
	_, err := Open("students.csv", bytes.NewReader([]byte("a,b\n1,2\n")), Positional())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestOpen_CorruptWorkbook(t *testing.T) {
	_, err := Open("students.xlsx", bytes.NewReader([]byte("not a zip")), Positional())
	assert.Error(t, err)
}

func TestIsSpreadsheet(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"a.xlsx", true},
		{"a.XLSX", true},
		{"a.xls", true},
		{"a.xlsm", true},
		{"a.csv", false},
		{"a.png", false},
		{"xlsx", false},
	}

	for _, tt := range tests {
		if got := IsSpreadsheet(tt.name); got != tt.expected {
			t.Errorf("IsSpreadsheet(%q) = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestKeyModeString(t *testing.T) {
	assert.Equal(t, "positional", Positional().String())
	assert.Equal(t, "labeled(证书编号)", Labeled(CertificateNumberHeader).String())
}
