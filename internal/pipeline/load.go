package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/crystelsherlock/quality-data/internal/chart"
	"github.com/crystelsherlock/quality-data/internal/config"
	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/importer"
	"github.com/crystelsherlock/quality-data/internal/lookup"
)

// State 一次加载的全部只读数据：对照表、统一长表、图表派生器
type State struct {
	Names   *lookup.NameLookup
	Metrics *lookup.MetricLookup
	Dataset *dataset.Dataset
	Deriver *chart.Deriver
	Report  *importer.ImportReport
	Files   []string
}

// Load 加载对照表并导入全部导出文件；任何错误都在写出文件之前返回
func Load(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*State, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	strict := lookup.Strict(cfg.Build.StrictLookups)
	names, err := lookup.LoadNameLookup(cfg.Paths.NamesFile, strict)
	if err != nil {
		return nil, fmt.Errorf("failed to load name lookup: %w", err)
	}
	for _, key := range names.Duplicates() {
		logger.Warn("duplicate key in name lookup, last row wins",
			zap.String("file", cfg.Paths.NamesFile), zap.String("key", key))
	}

	metrics, err := lookup.LoadMetricLookup(cfg.Paths.MetricsFile, strict)
	if err != nil {
		return nil, fmt.Errorf("failed to load metric lookup: %w", err)
	}
	for _, key := range metrics.Duplicates() {
		logger.Warn("duplicate key in metric lookup, last row wins",
			zap.String("file", cfg.Paths.MetricsFile), zap.String("key", key))
	}
	logger.Info("lookups loaded", zap.Int("names", names.Len()), zap.Int("metrics", metrics.Len()))

	files, err := importer.DiscoverExports(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no exports found in %s: %w", cfg.Paths.DataDir, dataset.ErrEmptyDataset)
	}

	ds, report, err := importer.NewCoordinator(names, metrics, logger).
		WithWorkers(cfg.Build.Workers).
		Import(ctx, files)
	if err != nil {
		return nil, err
	}

	deriver, err := chart.NewDeriver(ds, names, metrics)
	if err != nil {
		return nil, err
	}

	return &State{
		Names:   names,
		Metrics: metrics,
		Dataset: ds,
		Deriver: deriver,
		Report:  report,
		Files:   files,
	}, nil
}

// ProviderClinic 医生所属诊所
func (s *State) ProviderClinic(provider string) string {
	return s.Names.ClinicOf(provider)
}
