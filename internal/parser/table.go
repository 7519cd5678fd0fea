package parser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table 读入内存的二维表（表头 + 数据行）
type Table struct {
	Path    string
	Headers []string
	Rows    [][]string
	colIdx  map[string]int // 小写表头 → 列索引
}

// ReadTable 读取 CSV 或 Excel 表格，Excel 只读取第一个 Sheet
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readExcelTable(path)
	default:
		return readCSVTable(path)
	}
}

func readCSVTable(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	reader := newCSVReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read %s: missing header row", path)
	}
	return newTable(path, records[0], records[1:]), nil
}

func readExcelTable(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("read %s: workbook has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s of %s: %w", sheets[0], path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("read %s: missing header row", path)
	}
	return newTable(path, rows[0], rows[1:]), nil
}

func newTable(path string, headers []string, rows [][]string) *Table {
	t := &Table{
		Path:    path,
		Headers: make([]string, len(headers)),
		Rows:    rows,
		colIdx:  make(map[string]int, len(headers)),
	}
	for i, h := range headers {
		h = NormalizeHeader(h)
		t.Headers[i] = h
		key := strings.ToLower(h)
		if _, dup := t.colIdx[key]; !dup {
			t.colIdx[key] = i
		}
	}
	return t
}

// Col 按表头名查找列索引（大小写不敏感），不存在返回 -1
func (t *Table) Col(name string) int {
	if idx, ok := t.colIdx[strings.ToLower(NormalizeHeader(name))]; ok {
		return idx
	}
	return -1
}

// Value 读取单元格，越界或列不存在时返回空串
func (t *Table) Value(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// NormalizeHeader 去除 BOM 和首尾空白
func NormalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

// IsBlankRow 整行为空
func IsBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func newCSVReader(r io.Reader) *csv.Reader {
	bufReader := bufio.NewReaderSize(r, 64*1024)

	// Skip UTF-8 BOM if present
	if bom, err := bufReader.Peek(3); err == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader
}
