package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crystelsherlock/quality-data/internal/pipeline"
)

type buildOptions struct {
	dataDir string
	outDir  string
	workers int
	dryRun  bool
	strict  bool
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Import exports and generate the static site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// 命令行参数覆盖配置
			if opts.dataDir != "" {
				cfg.Paths.DataDir = opts.dataDir
			}
			if opts.outDir != "" {
				cfg.Paths.OutputDir = opts.outDir
			}
			if cmd.Flags().Changed("workers") {
				cfg.Build.Workers = opts.workers
			}
			if opts.strict {
				cfg.Build.StrictLookups = true
			}

			printBanner("Quality Site - 临床质量指标站点生成")
			fmt.Printf("数据目录: %s\n", cfg.Paths.DataDir)
			fmt.Printf("输出目录: %s\n", cfg.Paths.OutputDir)

			last := -1
			manifest, err := pipeline.Run(cmd.Context(), pipeline.Options{
				Config: cfg,
				Logger: logger,
				DryRun: opts.dryRun,
				Progress: func(e pipeline.ProgressEvent) {
					if e.Percent == last {
						return
					}
					last = e.Percent
					fmt.Printf("[%3d%%] %s\n", e.Percent, e.Stage)
				},
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n当前日期: %s（最早 %s）\n", manifest.CurrentDate, manifest.EarliestDate)
			fmt.Printf("导入 %d 个文件，%d 行\n", len(manifest.Inputs), manifest.Rows)
			fmt.Printf("医生 %d 位，诊所 %d 家，图表 %d 张，页面 %d 个\n",
				len(manifest.Providers), len(manifest.Clinics), manifest.Charts, manifest.Pages)
			if manifest.UnresolvedNames+manifest.UnresolvedMetrics+manifest.NullPercentages > 0 {
				fmt.Printf("数据质量: 未匹配名称 %d，未匹配指标 %d，空百分比 %d\n",
					manifest.UnresolvedNames, manifest.UnresolvedMetrics, manifest.NullPercentages)
			}
			if manifest.DryRun {
				fmt.Println("试运行：未写出任何文件")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.dataDir, "data", "", "Directory containing dated export CSVs (overrides config)")
	cmd.Flags().StringVar(&opts.outDir, "out", "", "Output directory for the generated site (overrides config)")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel workers for import and rendering (0 = CPU count)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Import and derive charts without writing any files")
	cmd.Flags().BoolVar(&opts.strict, "strict-lookups", false, "Treat duplicate lookup keys as errors")
	return cmd
}
