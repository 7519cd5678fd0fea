package exporter

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/model"
)

// DatasetRow 统一长表的 Parquet 行
type DatasetRow struct {
	Date       string   `parquet:"date"`
	Name       string   `parquet:"name,dict"`
	Type       string   `parquet:"type,dict"`
	Clinic     string   `parquet:"clinic,dict"`
	Metric     string   `parquet:"metric,dict"`
	Percentage *float64 `parquet:"percentage,optional"`
}

// NewDatasetRow 观测记录转 Parquet 行
func NewDatasetRow(o model.Observation) DatasetRow {
	row := DatasetRow{
		Date:   o.Date.Format(DateLayout),
		Name:   o.Name,
		Type:   string(o.Type),
		Clinic: o.Clinic,
		Metric: o.Metric,
	}
	if v, ok := o.Value(); ok {
		row.Percentage = &v
	}
	return row
}

// DatasetWriter 将统一长表写为 zstd 压缩的 Parquet 文件
type DatasetWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[DatasetRow]
	count  int
}

// NewDatasetWriter 创建 Parquet 写入器
func NewDatasetWriter(filename string) (*DatasetWriter, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create parquet file: %w", err)
	}

	writer := parquet.NewGenericWriter[DatasetRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("qualitysite", "1.0", ""),
	)

	return &DatasetWriter{
		file:   file,
		writer: writer,
	}, nil
}

// Write 写入一批行
func (w *DatasetWriter) Write(rows []DatasetRow) (int, error) {
	n, err := w.writer.Write(rows)
	w.count += n
	if err != nil {
		return n, fmt.Errorf("write parquet rows: %w", err)
	}
	return n, nil
}

// Close 刷新最后一个 row group 并关闭文件
func (w *DatasetWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return w.file.Close()
}

// Count 已写入行数
func (w *DatasetWriter) Count() int {
	return w.count
}

// WriteParquet 导出整个数据集
func WriteParquet(path string, ds *dataset.Dataset) (int, error) {
	w, err := NewDatasetWriter(path)
	if err != nil {
		return 0, err
	}

	obs := ds.Observations()
	rows := make([]DatasetRow, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, NewDatasetRow(o))
	}
	if _, err := w.Write(rows); err != nil {
		w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return w.Count(), nil
}
