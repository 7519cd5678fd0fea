package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/lookup"
	"github.com/crystelsherlock/quality-data/internal/model"
	"github.com/crystelsherlock/quality-data/internal/parser"
)

// percentagePlaces 百分比保留到基点（4 位小数）
const percentagePlaces = 4

// RowError 导出文件中某一行的数值无法解析
type RowError struct {
	File   string
	Line   int64
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s line %d: column %s: invalid number %q: %v", e.File, e.Line, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// FileStats 单个文件的数据质量统计
type FileStats struct {
	Rows              int      `json:"rows"`
	UnresolvedNames   []string `json:"unresolvedNames,omitempty"`   // 名称对照表未命中的原始标识（去重）
	UnresolvedMetrics []string `json:"unresolvedMetrics,omitempty"` // 指标对照表未命中的原始代码（去重）
	NullPercentages   int      `json:"nullPercentages"`             // 分母为 0 或缺失的行数
}

// FileResult 单个文件的导入结果
type FileResult struct {
	Path         string
	Date         time.Time
	Observations []model.Observation
	Stats        FileStats
}

// DiscoverExports 列出目录下所有 CSV 导出文件（按文件名排序）
func DiscoverExports(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list exports in %s: %w", dir, err)
	}
	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat export %s: %w", m, err)
		}
		if info.IsDir() {
			continue
		}
		paths = append(paths, m)
	}
	sort.Strings(paths)
	return paths, nil
}

// ValidateFilenames 校验所有文件名的日期前缀，任一不合法即返回错误
func ValidateFilenames(paths []string) (map[string]time.Time, error) {
	dates := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		date, err := parser.ParseExportFilename(p)
		if err != nil {
			return nil, err
		}
		dates[p] = date
	}
	return dates, nil
}

// IngestFile 读取单个导出文件，补全对照字段并计算百分比
func IngestFile(path string, names *lookup.NameLookup, metrics *lookup.MetricLookup) ([]model.Observation, error) {
	res, err := ingestFile(path, names, metrics)
	if err != nil {
		return nil, err
	}
	return res.Observations, nil
}

func ingestFile(path string, names *lookup.NameLookup, metrics *lookup.MetricLookup) (*FileResult, error) {
	date, err := parser.ParseExportFilename(path)
	if err != nil {
		return nil, err
	}

	reader, err := parser.NewExportReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	res := &FileResult{Path: path, Date: date}
	unresolvedNames := make(map[string]struct{})
	unresolvedMetrics := make(map[string]struct{})

	for {
		row, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		pct, rowErr := ComputePercentage(row.Numerator, row.Denominator)
		if rowErr != nil {
			rowErr.File = filepath.Base(path)
			rowErr.Line = row.Line
			return nil, rowErr
		}

		o := model.Observation{
			Percentage: pct,
			Date:       date,
		}
		if e, ok := names.Resolve(row.RawIdentifier); ok {
			o.Name = e.Name
			o.Type = e.Type
			o.Clinic = e.Clinic
		} else {
			unresolvedNames[row.RawIdentifier] = struct{}{}
		}
		if m, ok := metrics.Resolve(row.RawMetric); ok {
			o.Metric = m.Name
		} else {
			unresolvedMetrics[row.RawMetric] = struct{}{}
		}
		if pct == nil {
			res.Stats.NullPercentages++
		}

		res.Observations = append(res.Observations, o)
		res.Stats.Rows++
	}

	res.Stats.UnresolvedNames = sortedKeys(unresolvedNames)
	res.Stats.UnresolvedMetrics = sortedKeys(unresolvedMetrics)
	return res, nil
}

// ComputePercentage 计算 numerator/denominator 并保留 4 位小数
//
// 商按 float64 计算，再按其精确二进制值舍入（恰好一半时取偶），
// 因此 3/20000 = 0.000149999... 得到 0.0001，1/32 = 0.03125 得到 0.0312。
// 分子或分母为空、分母为 0 时返回 nil（该行保留，百分比为空）。
func ComputePercentage(numerator, denominator string) (*float64, *RowError) {
	if numerator == "" || denominator == "" {
		return nil, nil
	}
	num, err := decimal.NewFromString(numerator)
	if err != nil {
		return nil, &RowError{Column: parser.ColNumerator, Value: numerator, Err: err}
	}
	den, err := decimal.NewFromString(denominator)
	if err != nil {
		return nil, &RowError{Column: parser.ColDenominator, Value: denominator, Err: err}
	}
	if den.IsZero() {
		return nil, nil
	}
	q := num.InexactFloat64() / den.InexactFloat64()
	v, _ := strconv.ParseFloat(strconv.FormatFloat(q, 'f', percentagePlaces, 64), 64)
	return &v, nil
}

// BuildDataset 依次导入所有文件并拼接为统一长表
func BuildDataset(paths []string, names *lookup.NameLookup, metrics *lookup.MetricLookup) (*dataset.Dataset, error) {
	if _, err := ValidateFilenames(paths); err != nil {
		return nil, err
	}
	parts := make([][]model.Observation, 0, len(paths))
	for _, p := range paths {
		obs, err := IngestFile(p, names, metrics)
		if err != nil {
			return nil, err
		}
		parts = append(parts, obs)
	}
	return dataset.Concat(parts...), nil
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
