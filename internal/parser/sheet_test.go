package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// newWorkbook 在内存中构造只有一个工作表的 xlsx
func newWorkbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &rows[i]))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestReadSheet_Workbook(t *testing.T) {
	t.Parallel()

	buf := newWorkbook(t, [][]any{
		{"Name", "CC", "SC"},
		{"Jane Doe", "75%", 0.1},
		{nil, nil, nil},
		{"John Roe", 0.8, "12%"},
	})

	sheet, err := ReadSheet("cc.xlsx", buf, ReadOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", sheet.SheetName)
	assert.Equal(t, []string{"Name", "CC", "SC"}, sheet.Headers)
	assert.Equal(t, 1, sheet.HeaderRow)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, 2, sheet.Rows[0].RowNo)
	assert.Equal(t, "Jane Doe", sheet.Rows[0].Cells["Name"])
	assert.Equal(t, "75%", sheet.Rows[0].Cells["CC"])
	assert.Equal(t, 0.1, sheet.Rows[0].Cells["SC"])
	assert.Equal(t, 0.8, sheet.Rows[1].Cells["CC"])
	assert.Equal(t, "12%", sheet.Rows[1].Cells["SC"])
	assert.Equal(t, 4, sheet.Rows[1].RowNo)
}

func TestReadSheet_HeaderScan(t *testing.T) {
	t.Parallel()

	buf := newWorkbook(t, [][]any{
		{"Referral report - March"},
		{"generated", "2024-03-10"},
		{"Team", "CM Name", "leads", "Show up"},
		{"Alpha", "Jane Doe", 12, 4},
	})

	sheet, err := ReadSheet("re.xlsx", buf, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, sheet.HeaderRow)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, 12.0, sheet.Rows[0].Cells["leads"])
	assert.Equal(t, "12", sheet.Rows[0].Cells.Text("leads"))
}

func TestReadSheet_CSV(t *testing.T) {
	t.Parallel()

	data := "\xef\xbb\xbfName,Upgrade\njane doe,22\n"
	sheet, err := ReadSheet("up.csv", strings.NewReader(data), ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Upgrade"}, sheet.Headers)
	require.Len(t, sheet.Rows, 1)
	assert.Equal(t, "22", sheet.Rows[0].Cells["Upgrade"])
}

func TestReadSheet_Empty(t *testing.T) {
	t.Parallel()

	buf := newWorkbook(t, [][]any{{"Name", "CC", "SC"}})
	_, err := ReadSheet("cc.xlsx", buf, ReadOptions{})
	assert.True(t, errors.Is(err, ErrEmptySheet))

	_, err = ReadSheet("blank.csv", strings.NewReader(""), ReadOptions{})
	assert.True(t, errors.Is(err, ErrEmptySheet))
}

func TestReadSheet_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := ReadSheet("notes.txt", strings.NewReader("x"), ReadOptions{})
	assert.True(t, errors.Is(err, ErrUnsupportedFile))
}
