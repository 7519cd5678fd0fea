package importer

import (
	"context"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/lookup"
	"github.com/crystelsherlock/quality-data/internal/model"
)

// Coordinator 导入协调器：并行读取导出文件，按发现顺序合并为统一长表
type Coordinator struct {
	names   *lookup.NameLookup
	metrics *lookup.MetricLookup
	logger  *zap.Logger
	workers int
}

// NewCoordinator 创建导入协调器
func NewCoordinator(names *lookup.NameLookup, metrics *lookup.MetricLookup, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		names:   names,
		metrics: metrics,
		logger:  logger.Named("importer"),
		workers: runtime.NumCPU(),
	}
}

// WithWorkers 设置并行读取的文件数，<=0 表示 CPU 核数
func (c *Coordinator) WithWorkers(n int) *Coordinator {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	c.workers = n
	return c
}

// FileReport 单文件导入报告
type FileReport struct {
	Filename string    `json:"filename"`
	Date     time.Time `json:"date"`
	FileStats
}

// ImportReport 导入报告
type ImportReport struct {
	Files             []FileReport  `json:"files"`
	TotalRows         int           `json:"totalRows"`
	UnresolvedNames   int           `json:"unresolvedNames"`
	UnresolvedMetrics int           `json:"unresolvedMetrics"`
	NullPercentages   int           `json:"nullPercentages"`
	Duration          time.Duration `json:"duration"`
}

// Import 导入全部文件；任何错误都会中止整个导入
//
// 文件名在读取任何文件之前统一校验。
func (c *Coordinator) Import(ctx context.Context, paths []string) (*dataset.Dataset, *ImportReport, error) {
	start := time.Now()

	if _, err := ValidateFilenames(paths); err != nil {
		c.logger.Error("invalid export filename", zap.Error(err))
		return nil, nil, err
	}

	c.logger.Info("ingesting exports", zap.Int("files", len(paths)), zap.Int("workers", c.workers))

	results := make([]*FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ingestFile(p, c.names, c.metrics)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error("ingestion aborted", zap.Error(err))
		return nil, nil, err
	}

	report := &ImportReport{}
	parts := make([][]model.Observation, 0, len(results))
	for _, res := range results {
		parts = append(parts, res.Observations)
		c.recordFile(report, res)
	}
	report.Duration = time.Since(start)

	ds := dataset.Concat(parts...)
	if ds.Len() == 0 {
		c.logger.Error("no observations ingested", zap.Int("files", len(paths)))
		return nil, report, dataset.ErrEmptyDataset
	}

	c.logger.Info("ingestion complete",
		zap.Int("files", len(report.Files)),
		zap.Int("rows", report.TotalRows),
		zap.Int("unresolvedNames", report.UnresolvedNames),
		zap.Int("unresolvedMetrics", report.UnresolvedMetrics),
		zap.Int("nullPercentages", report.NullPercentages),
		zap.Duration("duration", report.Duration),
	)
	return ds, report, nil
}

// recordFile 汇总单文件统计并输出数据质量告警
func (c *Coordinator) recordFile(report *ImportReport, res *FileResult) {
	filename := filepath.Base(res.Path)
	report.Files = append(report.Files, FileReport{
		Filename:  filename,
		Date:      res.Date,
		FileStats: res.Stats,
	})
	report.TotalRows += res.Stats.Rows
	report.UnresolvedNames += len(res.Stats.UnresolvedNames)
	report.UnresolvedMetrics += len(res.Stats.UnresolvedMetrics)
	report.NullPercentages += res.Stats.NullPercentages

	log := c.logger.With(zap.String("file", filename))
	for _, key := range res.Stats.UnresolvedNames {
		log.Warn("identifier missing from name lookup", zap.String("rawIdentifier", key))
	}
	for _, key := range res.Stats.UnresolvedMetrics {
		log.Warn("metric code missing from metric lookup", zap.String("rawMetric", key))
	}
	if res.Stats.NullPercentages > 0 {
		log.Warn("rows with zero or blank denominator", zap.Int("rows", res.Stats.NullPercentages))
	}
	log.Debug("file ingested", zap.Time("date", res.Date), zap.Int("rows", res.Stats.Rows))
}
