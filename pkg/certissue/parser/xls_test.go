package parser

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// students.xls holds one sheet:
//
//	line 1  证书编号 | 姓名 | 专业
//	line 2  C001     | 张三 | 计算机
//	line 3  1001     | 李四            (number cell, row ends after 姓名)
//	line 4                             (no row record)
//	line 5  C003     |      | 物理
//	line 6           | 王五 | 数学     (row starts at the second column)
//	line 7  1002     | 赵六 | 化学     (RK cell)
func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestOpen_XLS(t *testing.T) {
	data := readFixture(t, "students.xls")

	rr, err := Open("students.xls", bytes.NewReader(data), Labeled(CertificateNumberHeader))
	require.NoError(t, err)
	defer rr.Close()

	assert.Equal(t, []string{"证书编号", "姓名", "专业"}, rr.Headers())

	var keys []string
	var lines []int
	var rows []map[string]string
	for rr.Next() {
		keys = append(keys, rr.Key())
		lines = append(lines, rr.Line())
		m := make(map[string]string)
		for _, h := range rr.Row().Columns() {
			m[h] = rr.Row().Value(h)
		}
		rows = append(rows, m)
	}
	require.NoError(t, rr.Err())

	assert.Equal(t, []string{"C001", "1001", "C003", "1002"}, keys)
	assert.Equal(t, []int{2, 3, 5, 7}, lines)
	assert.Equal(t, []map[string]string{
		{"证书编号": "C001", "姓名": "张三", "专业": "计算机"},
		{"证书编号": "1001", "姓名": "李四", "专业": ""},
		{"证书编号": "C003", "姓名": "", "专业": "物理"},
		{"证书编号": "1002", "姓名": "赵六", "专业": "化学"},
	}, rows)

	assert.False(t, rr.Next())
}

func TestOpen_XLSPositional(t *testing.T) {
	data := readFixture(t, "students.xls")

	rr, err := Open("STUDENTS.XLS", bytes.NewReader(data), Positional())
	require.NoError(t, err)
	defer rr.Close()

	keys, _ := readAll(t, rr)
	assert.Equal(t, []string{"C001", "1001", "C003", "1002"}, keys)
}

func TestXLSCursor_PadsLeadingColumns(t *testing.T) {
	data := readFixture(t, "students.xls")

	cur, err := openXLS(bytes.NewReader(data))
	require.NoError(t, err)
	defer cur.close()

	var lines [][]string
	for cur.next() {
		cells, err := cur.columns()
		require.NoError(t, err)
		lines = append(lines, cells)
	}
	require.NoError(t, cur.err())

	require.Len(t, lines, 7)
	assert.Nil(t, lines[3])
	assert.Equal(t, []string{"", "王五", "数学"}, lines[5])
	assert.Equal(t, []string{"1001", "李四"}, lines[2])
}

func TestOpen_XLSCorrupt(t *testing.T) {
	full := readFixture(t, "students.xls")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{name: "empty", data: nil},
		{name: "garbage", data: []byte("this is not a workbook")},
		{name: "header only", data: full[:512], want: ErrNoWorkbookStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open("students.xls", bytes.NewReader(tt.data), Positional())
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestRecoverCorrupt(t *testing.T) {
	read := func() (err error) {
		defer recoverCorrupt(&err)
		panic("index out of range")
	}

	err := read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt xls workbook")
	assert.False(t, errors.Is(err, ErrNoWorkbookStream))
}
