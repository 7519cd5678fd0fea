package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crystelsherlock/quality-data/internal/config"
	"github.com/crystelsherlock/quality-data/internal/logging"
)

// rootOptions 全局参数
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "qualitysite",
		Short:         "Clinical quality metrics site generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.toml (default: ./config.toml or next to the executable)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: console or json (overrides config)")

	cmd.AddCommand(
		newBuildCmd(&opts),
		newServeCmd(&opts),
		newInitCmd(&opts),
	)
	return cmd
}

// loadConfig 加载配置并创建日志器；配置文件缺失时使用默认配置
func loadConfig(opts *rootOptions) (*config.AppConfig, config.LoadConfigInfo, *zap.Logger, error) {
	cfg, info, err := config.LoadConfigWithInfo(opts.configPath)
	if err != nil {
		return nil, info, nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Log.Format = opts.logFormat
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, info, nil, err
	}
	if info.Path != "" {
		logger.Info("config loaded", zap.String("path", info.Path))
	} else {
		logger.Info("no config file found, using defaults")
	}
	return cfg, info, logger, nil
}

func printBanner(title string) {
	fmt.Println("==========================================")
	fmt.Println("  " + title)
	fmt.Println("==========================================")
}
