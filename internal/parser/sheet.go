package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"cmpulse/internal/model"
)

var (
	// ErrEmptySheet 工作表没有任何数据行
	ErrEmptySheet = errors.New("sheet has no data rows")
	// ErrUnsupportedFile 不支持的文件类型
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// DefaultHeaderScanRows 表头所在行的最大扫描深度
const DefaultHeaderScanRows = 10

// SheetRow 数据行（RowNo 为 1 起始的表格行号）
type SheetRow struct {
	RowNo int
	Cells model.RawRow
}

// Sheet 解析后的首个工作表
type Sheet struct {
	Name      string // 文件名
	SheetName string
	Headers   []string
	HeaderRow int // 1 起始
	Rows      []SheetRow
}

// ReadOptions 读取选项
type ReadOptions struct {
	HeaderScanRows int
}

// SupportedExt 是否支持的扩展名
func SupportedExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// ReadSheetFile 从磁盘读取文件的首个工作表
func ReadSheetFile(path string, opts ReadOptions) (*Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadSheet(filepath.Base(path), f, opts)
}

// ReadSheet 读取首个工作表；name 用于判断文件格式
func ReadSheet(name string, r io.Reader, opts ReadOptions) (*Sheet, error) {
	var (
		rows      [][]any
		sheetName string
		err       error
	)

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		rows, err = readCSV(r)
		sheetName = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	case ".xlsx", ".xlsm":
		rows, sheetName, err = readWorkbook(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(name))
	}
	if err != nil {
		return nil, err
	}

	return buildSheet(name, sheetName, rows, opts)
}

func readWorkbook(r io.Reader) ([][]any, string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, "", fmt.Errorf("failed to read rows: %w", err)
	}

	typed := make([][]any, len(rows))
	for r, row := range rows {
		out := make([]any, len(row))
		for c, v := range row {
			out[c] = v
			if strings.TrimSpace(v) == "" {
				continue
			}
			n, ok, err := numericCell(f, sheets[0], c+1, r+1, v)
			if err != nil {
				return nil, "", err
			}
			if ok {
				out[c] = n
			}
		}
		typed[r] = out
	}
	return typed, sheets[0], nil
}

// numericCell 数值单元格（未标注类型或 n 类型）返回 float64；文本单元格保持原样
func numericCell(f *excelize.File, sheet string, col, row int, raw string) (float64, bool, error) {
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return 0, false, fmt.Errorf("failed to resolve cell: %w", err)
	}
	ct, err := f.GetCellType(sheet, ref)
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cell type %s: %w", ref, err)
	}
	if ct != excelize.CellTypeUnset && ct != excelize.CellTypeNumber {
		return 0, false, nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

func readCSV(r io.Reader) ([][]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return textRows(records), nil
}

// textRows CSV 单元格一律视为文本
func textRows(records [][]string) [][]any {
	rows := make([][]any, len(records))
	for i, rec := range records {
		row := make([]any, len(rec))
		for j, v := range rec {
			row[j] = v
		}
		rows[i] = row
	}
	return rows
}

func buildSheet(name, sheetName string, rows [][]any, opts ReadOptions) (*Sheet, error) {
	headerIdx := locateHeaderRow(rows, opts.HeaderScanRows)
	if headerIdx < 0 {
		return nil, ErrEmptySheet
	}

	headers := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		headers[i] = model.CellText(h)
	}

	sheet := &Sheet{
		Name:      name,
		SheetName: sheetName,
		Headers:   headers,
		HeaderRow: headerIdx + 1,
	}

	for idx := headerIdx + 1; idx < len(rows); idx++ {
		cells := make(model.RawRow, len(headers))
		blank := true
		for col, h := range headers {
			if h == "" || col >= len(rows[idx]) {
				continue
			}
			v := rows[idx][col]
			if s, ok := v.(string); ok {
				v = strings.TrimSpace(s)
			}
			if model.CellText(v) != "" {
				blank = false
			}
			if _, dup := cells[h]; !dup {
				cells[h] = v
			}
		}
		if blank {
			continue
		}
		sheet.Rows = append(sheet.Rows, SheetRow{RowNo: idx + 1, Cells: cells})
	}

	if len(sheet.Rows) == 0 {
		return sheet, ErrEmptySheet
	}
	return sheet, nil
}

// locateHeaderRow 在前 scanRows 行内查找含 mentor 姓名列的行；找不到则取首个非空行
func locateHeaderRow(rows [][]any, scanRows int) int {
	if scanRows <= 0 {
		scanRows = DefaultHeaderScanRows
	}

	firstNonEmpty := -1
	for idx := 0; idx < len(rows) && idx < scanRows; idx++ {
		nonEmpty := false
		for _, cell := range rows[idx] {
			n := NormalizeHeader(model.CellText(cell))
			if n == "" {
				continue
			}
			nonEmpty = true
			if isVariantOf(n, model.FieldMentorName) {
				return idx
			}
		}
		if nonEmpty && firstNonEmpty < 0 {
			firstNonEmpty = idx
		}
	}
	return firstNonEmpty
}
