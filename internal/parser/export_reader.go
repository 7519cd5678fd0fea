package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// 导出文件中使用的列名（大小写不敏感）
const (
	ColRawIdentifier = "NAME"
	ColRawMetric     = "Metricname"
	ColNumerator     = "SeenNum"
	ColDenominator   = "SeenDenom"
)

// ExportRow 导出文件中的一行原始数据，仅在导入阶段使用
type ExportRow struct {
	Line          int64
	RawIdentifier string
	RawMetric     string
	Numerator     string
	Denominator   string
}

// MissingColumnError 导出文件缺少必需的列
type MissingColumnError struct {
	Path   string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Path, e.Column)
}

// ExportReader 逐行读取质量指标导出 CSV
type ExportReader struct {
	path   string
	file   *os.File
	csv    *csv.Reader
	rowNum int64

	identIdx  int
	metricIdx int
	numIdx    int
	denIdx    int
}

// NewExportReader 打开导出文件并校验表头
func NewExportReader(path string) (*ExportReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := &ExportReader{
		path: path,
		file: file,
		csv:  newCSVReader(file),
	}
	if err := r.readHeaders(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

func (r *ExportReader) readHeaders() error {
	headers, err := r.csv.Read()
	if err != nil {
		if err == io.EOF {
			return fmt.Errorf("%s: missing header row", r.path)
		}
		return fmt.Errorf("read header row of %s: %w", r.path, err)
	}
	r.rowNum++

	colIdx := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strings.ToLower(NormalizeHeader(h))
		if _, dup := colIdx[key]; !dup {
			colIdx[key] = i
		}
	}

	find := func(name string) (int, error) {
		idx, ok := colIdx[strings.ToLower(name)]
		if !ok {
			return -1, &MissingColumnError{Path: r.path, Column: name}
		}
		return idx, nil
	}

	if r.identIdx, err = find(ColRawIdentifier); err != nil {
		return err
	}
	if r.metricIdx, err = find(ColRawMetric); err != nil {
		return err
	}
	if r.numIdx, err = find(ColNumerator); err != nil {
		return err
	}
	if r.denIdx, err = find(ColDenominator); err != nil {
		return err
	}
	return nil
}

// Next 读取下一条数据行，文件结束时返回 io.EOF；空行被跳过
func (r *ExportReader) Next() (ExportRow, error) {
	for {
		record, err := r.csv.Read()
		if err != nil {
			if err == io.EOF {
				return ExportRow{}, io.EOF
			}
			return ExportRow{}, fmt.Errorf("read %s row %d: %w", r.path, r.rowNum+1, err)
		}
		r.rowNum++
		if IsBlankRow(record) {
			continue
		}

		return ExportRow{
			Line:          r.rowNum,
			RawIdentifier: field(record, r.identIdx),
			RawMetric:     field(record, r.metricIdx),
			Numerator:     field(record, r.numIdx),
			Denominator:   field(record, r.denIdx),
		}, nil
	}
}

// RowNum 已读取的物理行数（含表头）
func (r *ExportReader) RowNum() int64 {
	return r.rowNum
}

// Close 关闭文件
func (r *ExportReader) Close() error {
	return r.file.Close()
}

// ReadExport 读取整个导出文件
func ReadExport(path string) ([]ExportRow, error) {
	r, err := NewExportReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var rows []ExportRow
	for {
		row, err := r.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
