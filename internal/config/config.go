package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName 默认配置文件名
const ConfigFileName = "config.toml"

// 环境变量覆盖
const (
	EnvDataDir   = "QUALITYSITE_DATA_DIR"
	EnvOutputDir = "QUALITYSITE_OUTPUT_DIR"
	EnvLogLevel  = "QUALITYSITE_LOG_LEVEL"
	EnvWorkers   = "QUALITYSITE_WORKERS"
)

// AppConfig 应用配置
type AppConfig struct {
	Paths  PathsConfig  `toml:"paths"`
	Build  BuildConfig  `toml:"build"`
	Chart  ChartConfig  `toml:"chart"`
	Server ServerConfig `toml:"server"`
	Log    LogConfig    `toml:"log"`
}

// PathsConfig 输入输出路径
type PathsConfig struct {
	DataDir      string `toml:"data_dir"`      // 导出 CSV 所在目录
	NamesFile    string `toml:"names_file"`    // 名称对照表
	MetricsFile  string `toml:"metrics_file"`  // 指标对照表
	PageTemplate string `toml:"page_template"` // 医生/诊所页模板，不存在时使用内置模板
	BaseTemplate string `toml:"base_template"` // 首页模板，不存在时使用内置模板
	OutputDir    string `toml:"output_dir"`
}

// BuildConfig 构建配置
type BuildConfig struct {
	Workers        int      `toml:"workers"` // 0 表示 CPU 核数
	TrackedMetrics []string `toml:"tracked_metrics"`
	StrictLookups  bool     `toml:"strict_lookups"`
	ExportWorkbook bool     `toml:"export_workbook"`
	ExportParquet  bool     `toml:"export_parquet"`
}

// ChartConfig 图表尺寸（points）与配色
type ChartConfig struct {
	Width         float64 `toml:"width"`
	Height        float64 `toml:"height"`
	ProviderColor string  `toml:"provider_color"`
	ClinicColor   string  `toml:"clinic_color"`
	TargetColor   string  `toml:"target_color"`
	RangeColor    string  `toml:"range_color"`
	StripColor    string  `toml:"strip_color"`
}

// ServerConfig 预览服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `toml:"level"`  // debug/info/warn/error
	Format string `toml:"format"` // console/json
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string // 实际读取的配置文件，未找到时为空
	PortSpecified bool
}

// DefaultTrackedMetrics 默认展示的指标
var DefaultTrackedMetrics = []string{
	"AAA",
	"Chlamydia",
	"Colorectal Screen",
	"DM with Statin",
	"DM with ACE or ARB",
	"DM Eye Exam",
	"DM Foot Exam",
	"Mammogram",
	"DM Nephropathy",
	"Pap Smears",
	"DM Pneumovax",
	"Over age 65 Pneumovax",
	"Smoker Pneumovax",
	"TD and TDAP",
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Paths: PathsConfig{
			DataDir:      "./data",
			NamesFile:    "./files/names.csv",
			MetricsFile:  "./files/metrics.csv",
			PageTemplate: "./files/index.html",
			BaseTemplate: "./files/index-base.html",
			OutputDir:    "./docs",
		},
		Build: BuildConfig{
			Workers:        0,
			TrackedMetrics: append([]string(nil), DefaultTrackedMetrics...),
			StrictLookups:  false,
			ExportWorkbook: true,
			ExportParquet:  true,
		},
		Chart: ChartConfig{
			Width:         320,
			Height:        200,
			ProviderColor: "#1f77b4",
			ClinicColor:   "#ff7f0e",
			TargetColor:   "green",
			RangeColor:    "#aec7e8",
			StripColor:    "#eeeeee",
		},
		Server: ServerConfig{
			Port:    20262,
			DevMode: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// resolveConfigPath 未显式指定时依次查找当前目录、可执行文件目录
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if exeDir, err := GetExeDir(); err == nil {
		candidate := filepath.Join(exeDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// LoadConfigWithInfo 加载配置并返回元信息
//
// 优先级：环境变量 > config.toml > 默认值；命令行参数由调用方再覆盖。
// 当前目录存在 .env 时先加载，不覆盖已有环境变量。
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	config := DefaultConfig()

	if err := loadDotEnv(".env"); err != nil {
		return nil, info, err
	}

	explicit := path != ""
	configPath := resolveConfigPath(path)
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			info.Path = configPath
			info.PortSpecified = isPortSpecifiedInToml(data)
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, info, fmt.Errorf("failed to parse %s: %w", configPath, err)
			}
		case os.IsNotExist(err) && !explicit:
			// 配置文件不存在，使用默认配置
		default:
			return nil, info, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := applyEnv(config); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

// LoadConfig 加载配置
func LoadConfig(path string) (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo(path)
	return config, err
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv 环境变量覆盖
func applyEnv(config *AppConfig) error {
	if v := os.Getenv(EnvDataDir); v != "" {
		config.Paths.DataDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		config.Paths.OutputDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Log.Level = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvWorkers, v, err)
		}
		config.Build.Workers = n
	}
	return nil
}

// Validate 校验配置
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Paths.DataDir == "" {
		errs = append(errs, errors.New("paths.data_dir is required"))
	}
	if c.Paths.NamesFile == "" {
		errs = append(errs, errors.New("paths.names_file is required"))
	}
	if c.Paths.MetricsFile == "" {
		errs = append(errs, errors.New("paths.metrics_file is required"))
	}
	if c.Paths.OutputDir == "" {
		errs = append(errs, errors.New("paths.output_dir is required"))
	}
	if c.Build.Workers < 0 {
		errs = append(errs, fmt.Errorf("build.workers must be >= 0, got %d", c.Build.Workers))
	}
	if len(c.Build.TrackedMetrics) == 0 {
		errs = append(errs, errors.New("build.tracked_metrics must not be empty"))
	}
	if c.Chart.Width <= 0 || c.Chart.Height <= 0 {
		errs = append(errs, fmt.Errorf("chart size must be positive, got %vx%v", c.Chart.Width, c.Chart.Height))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	return errors.Join(errs...)
}

// SaveConfig 保存配置
func SaveConfig(config *AppConfig, path string) error {
	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureOutputDir 确保输出目录存在
func EnsureOutputDir(config *AppConfig) (string, error) {
	dir := config.Paths.OutputDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir %s: %w", dir, err)
	}
	return dir, nil
}
