package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crystelsherlock/quality-data/internal/api"
	"github.com/crystelsherlock/quality-data/internal/config"
	"github.com/crystelsherlock/quality-data/internal/pipeline"
	"github.com/crystelsherlock/quality-data/internal/site"
)

// Server 本地预览服务器：/api 提供图表数据，其余路径提供生成的站点
type Server struct {
	router *gin.Engine
	outDir string
	api    *api.Handler
	logger *zap.Logger
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, state *pipeline.State, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	opts, err := pipeline.RenderOptions(cfg.Chart)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: gin.New(),
		outDir: cfg.Paths.OutputDir,
		api:    api.NewHandler(state, opts, cfg.Build.TrackedMetrics),
		logger: logger,
	}
	s.router.Use(gin.Recovery(), s.accessLog())
	s.setupRoutes()
	return s, nil
}

// Handler 返回底层 http.Handler（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
		)
	}
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}

	// 生成的站点：目录请求返回其中的 index.html
	s.router.NoRoute(s.serveSite)
}

func (s *Server) serveSite(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	rel := path.Clean("/" + c.Request.URL.Path)
	target := filepath.Join(s.outDir, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	info, err := os.Stat(target)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	if info.IsDir() {
		// 与静态托管一致：目录需以 / 结尾，页面中的相对链接才能正确解析
		if !strings.HasSuffix(c.Request.URL.Path, "/") {
			c.Redirect(http.StatusMovedPermanently, c.Request.URL.Path+"/")
			return
		}
		target = filepath.Join(target, site.IndexFile)
		if _, err := os.Stat(target); err != nil {
			c.Status(http.StatusNotFound)
			return
		}
	}
	c.File(target)
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	s.logger.Info("preview server listening", zap.String("addr", addr), zap.String("site", s.outDir))
	return s.router.Run(addr)
}
