package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crystelsherlock/quality-data/internal/pipeline"
	"github.com/crystelsherlock/quality-data/internal/server"
	"github.com/crystelsherlock/quality-data/internal/util"
)

type serveOptions struct {
	port    int
	devMode bool
	build   bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Preview the generated site with a chart data API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, info, logger, err := loadConfig(root)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			// config.toml 显式配置的端口优先
			if opts.port > 0 && !info.PortSpecified {
				cfg.Server.Port = opts.port
			}
			if opts.devMode {
				cfg.Server.DevMode = true
			}

			printBanner("Quality Site - 本地预览")

			ctx := cmd.Context()
			if opts.build {
				if _, err := pipeline.Run(ctx, pipeline.Options{Config: cfg, Logger: logger}); err != nil {
					return err
				}
			}
			state, err := pipeline.Load(ctx, cfg, logger)
			if err != nil {
				return err
			}

			srv, err := server.NewServer(cfg, state, logger)
			if err != nil {
				return err
			}

			addr := fmt.Sprintf(":%d", cfg.Server.Port)
			url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

			errCh := make(chan error, 1)
			go func() {
				fmt.Printf("服务启动中，监听端口 %d ...\n", cfg.Server.Port)
				errCh <- srv.Run(addr)
			}()

			// 打开浏览器
			if !cfg.Server.DevMode {
				fmt.Printf("正在打开浏览器: %s\n", url)
				if err := util.OpenBrowserWithFallback(url); err != nil {
					logger.Warn("failed to open browser", zap.Error(err))
					fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
				}
			} else {
				fmt.Printf("开发模式: 请访问 %s\n", url)
			}

			fmt.Println("\n按 Ctrl+C 停止服务...")
			select {
			case err := <-errCh:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server stopped: %w", err)
				}
			case <-ctx.Done():
				logger.Info("shutting down", zap.String("addr", addr))
				fmt.Println("\n正在关闭服务...")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", 0, "Listen port (config.toml wins when it sets server.port)")
	cmd.Flags().BoolVar(&opts.devMode, "dev", false, "Development mode: verbose gin logging, no browser")
	cmd.Flags().BoolVar(&opts.build, "build", false, "Rebuild the site before serving")
	return cmd
}
