package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/vg"

	"github.com/crystelsherlock/quality-data/internal/config"
	"github.com/crystelsherlock/quality-data/internal/exporter"
	"github.com/crystelsherlock/quality-data/internal/parser"
	"github.com/crystelsherlock/quality-data/internal/render"
	"github.com/crystelsherlock/quality-data/internal/site"
)

// 输出文件名
const (
	ManifestFile = "manifest.json"
	WorkbookFile = "dataset.xlsx"
	ParquetFile  = "dataset.parquet"
)

// Options 构建选项
type Options struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	DryRun   bool // 只导入与派生，不写任何文件
	Progress func(ProgressEvent)
}

// Manifest 构建结果清单
type Manifest struct {
	RunID        string    `json:"runId"`
	GeneratedAt  time.Time `json:"generatedAt"`
	CurrentDate  string    `json:"currentDate"`
	EarliestDate string    `json:"earliestDate"`
	DryRun       bool      `json:"dryRun"`
	Inputs       []string  `json:"inputs"`
	Rows         int       `json:"rows"`
	Providers    []string  `json:"providers"`
	Clinics      []string  `json:"clinics"`
	Metrics      []string  `json:"metrics"`
	Charts       int       `json:"charts"`
	Pages        int       `json:"pages"`
	Exports      []string  `json:"exports,omitempty"`

	UnresolvedNames   int `json:"unresolvedNames"`
	UnresolvedMetrics int `json:"unresolvedMetrics"`
	NullPercentages   int `json:"nullPercentages"`
}

// chartJob 单个实体、单个指标的图表任务
type chartJob struct {
	entity string
	clinic bool
	metric string
}

// Run 执行完整构建：导入 → 派生 → 渲染 → 页面 → 导出 → 清单
func Run(ctx context.Context, opts Options) (*Manifest, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runID := uuid.NewString()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("runId", runID))

	reportProgress(opts.Progress, 0, "loading lookups and exports")
	state, err := Load(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	current := state.Deriver.LatestDate()
	providers := state.Dataset.Providers()
	clinics := state.Dataset.Clinics()
	metrics := cfg.Build.TrackedMetrics

	manifest := &Manifest{
		RunID:             runID,
		GeneratedAt:       time.Now().UTC(),
		CurrentDate:       parser.FormatDisplayDate(current),
		EarliestDate:      parser.FormatDisplayDate(state.Deriver.EarliestDate()),
		DryRun:            opts.DryRun,
		Rows:              state.Dataset.Len(),
		Providers:         providers,
		Clinics:           clinics,
		Metrics:           metrics,
		UnresolvedNames:   state.Report.UnresolvedNames,
		UnresolvedMetrics: state.Report.UnresolvedMetrics,
		NullPercentages:   state.Report.NullPercentages,
	}
	for _, f := range state.Files {
		manifest.Inputs = append(manifest.Inputs, filepath.Base(f))
	}
	reportProgress(opts.Progress, 20, "dataset ready")

	renderOpts, err := RenderOptions(cfg.Chart)
	if err != nil {
		return nil, err
	}
	tpl, err := site.LoadTemplates(cfg.Paths.PageTemplate, cfg.Paths.BaseTemplate)
	if err != nil {
		return nil, err
	}
	builder := site.NewBuilder(cfg.Paths.OutputDir, tpl, metrics).
		WithColors(cfg.Chart.ProviderColor, cfg.Chart.ClinicColor)

	var jobs []chartJob
	for _, p := range providers {
		for _, m := range metrics {
			jobs = append(jobs, chartJob{entity: p, metric: m})
		}
	}
	for _, c := range clinics {
		for _, m := range metrics {
			jobs = append(jobs, chartJob{entity: c, clinic: true, metric: m})
		}
	}

	if !opts.DryRun {
		if _, err := config.EnsureOutputDir(cfg); err != nil {
			return nil, err
		}
	}

	workers := cfg.Build.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger.Info("rendering charts",
		zap.Int("providers", len(providers)),
		zap.Int("clinics", len(clinics)),
		zap.Int("charts", len(jobs)),
		zap.Int("workers", workers),
		zap.Bool("dryRun", opts.DryRun),
	)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := renderJob(state, builder, renderOpts, job, opts.DryRun); err != nil {
				return fmt.Errorf("chart %s / %s: %w", job.entity, job.metric, err)
			}
			mu.Lock()
			done++
			reportProgress(opts.Progress, 20+60*done/len(jobs), "rendering charts")
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("chart rendering aborted", zap.Error(err))
		return nil, err
	}
	manifest.Charts = len(jobs)

	if opts.DryRun {
		reportProgress(opts.Progress, 100, "dry run complete")
		logger.Info("dry run complete", zap.Int("charts", manifest.Charts))
		return manifest, nil
	}

	reportProgress(opts.Progress, 85, "writing pages")
	pages, err := writePages(state, builder, providers, clinics)
	if err != nil {
		return nil, err
	}
	manifest.Pages = pages

	reportProgress(opts.Progress, 92, "writing exports")
	if cfg.Build.ExportWorkbook {
		path := filepath.Join(cfg.Paths.OutputDir, WorkbookFile)
		if err := exporter.WriteWorkbook(path, state.Dataset, state.Metrics); err != nil {
			return nil, err
		}
		manifest.Exports = append(manifest.Exports, WorkbookFile)
	}
	if cfg.Build.ExportParquet {
		path := filepath.Join(cfg.Paths.OutputDir, ParquetFile)
		if _, err := exporter.WriteParquet(path, state.Dataset); err != nil {
			return nil, err
		}
		manifest.Exports = append(manifest.Exports, ParquetFile)
	}

	if err := writeJSONAtomic(filepath.Join(cfg.Paths.OutputDir, ManifestFile), manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	reportProgress(opts.Progress, 100, "done")
	logger.Info("site built",
		zap.String("output", cfg.Paths.OutputDir),
		zap.Int("charts", manifest.Charts),
		zap.Int("pages", manifest.Pages),
		zap.Strings("exports", manifest.Exports),
	)
	return manifest, nil
}

func renderJob(state *State, builder *site.Builder, opts render.Options, job chartJob, dryRun bool) error {
	path := builder.ChartPath(job.entity, job.metric)
	if job.clinic {
		b := state.Deriver.DeriveClinic(job.metric, job.entity)
		if dryRun {
			return nil
		}
		return render.SaveClinic(path, b, opts)
	}
	b := state.Deriver.DeriveIndividual(job.metric, job.entity)
	if dryRun {
		return nil
	}
	return render.SaveIndividual(path, b, opts)
}

// writePages 写出全部医生页、诊所页与首页，返回页面数
func writePages(state *State, builder *site.Builder, providers, clinics []string) (int, error) {
	current := state.Deriver.LatestDate()
	pages := 0

	cards := make([]site.ProviderCard, 0, len(providers))
	for _, p := range providers {
		clinic := state.ProviderClinic(p)
		colleagues := state.Names.MembersOf(clinic)
		if _, err := builder.WriteProviderPage(p, clinic, colleagues, clinics, current); err != nil {
			return pages, fmt.Errorf("failed to write page for %s: %w", p, err)
		}
		cards = append(cards, site.ProviderCard{Name: p, Clinic: clinic})
		pages++
	}
	for _, c := range clinics {
		if _, err := builder.WriteClinicPage(c, state.Names.MembersOf(c), clinics, current); err != nil {
			return pages, fmt.Errorf("failed to write page for %s: %w", c, err)
		}
		pages++
	}
	if _, err := builder.WriteRootIndex(clinics, cards, current); err != nil {
		return pages, fmt.Errorf("failed to write root index: %w", err)
	}
	return pages + 1, nil
}

// RenderOptions 由配置构造渲染参数
func RenderOptions(c config.ChartConfig) (render.Options, error) {
	opts := render.DefaultOptions()
	opts.Width = vg.Points(c.Width)
	opts.Height = vg.Points(c.Height)

	colors := []struct {
		value string
		dest  *color.Color
	}{
		{c.ProviderColor, &opts.Palette.Provider},
		{c.ClinicColor, &opts.Palette.Clinic},
		{c.TargetColor, &opts.Palette.Target},
		{c.RangeColor, &opts.Palette.Range},
		{c.StripColor, &opts.Palette.Strip},
	}
	for _, col := range colors {
		if col.value == "" {
			continue
		}
		parsed, err := render.ParseColor(col.value)
		if err != nil {
			return render.Options{}, err
		}
		*col.dest = parsed
	}
	return opts, nil
}

func writeJSONAtomic(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
