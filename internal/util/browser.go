package util

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// launcher 一种打开 URL 的方式：命令名加 URL 之前的参数
type launcher struct {
	name string
	args []string
}

func (l launcher) String() string {
	return strings.Join(append([]string{l.name}, l.args...), " ")
}

// previewLaunchers 各平台依次尝试的方式，第一项为系统默认浏览器
func previewLaunchers(goos string) []launcher {
	switch goos {
	case "windows":
		return []launcher{
			{name: "rundll32", args: []string{"url.dll,FileProtocolHandler"}},
			{name: "explorer"},
		}
	case "darwin":
		return []launcher{{name: "open"}}
	default:
		return []launcher{
			{name: "xdg-open"},
			{name: "sensible-browser"},
			{name: "firefox"},
			{name: "chromium"},
			{name: "google-chrome"},
		}
	}
}

// BrowserError 所有方式都无法打开预览页面
type BrowserError struct {
	URL   string
	Tried []string
	Err   error // 最后一次失败的原因
}

func (e *BrowserError) Error() string {
	return fmt.Sprintf("open preview %s: tried %s: %v", e.URL, strings.Join(e.Tried, ", "), e.Err)
}

func (e *BrowserError) Unwrap() error {
	return e.Err
}

// startFunc 启动外部进程，不等待其退出
type startFunc func(name string, args ...string) error

func startCommand(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenBrowser 用系统默认浏览器打开 URL
func OpenBrowser(url string) error {
	return openWith(previewLaunchers(runtime.GOOS)[:1], url, startCommand)
}

// OpenBrowserWithFallback 依次尝试默认浏览器和常见浏览器，全部失败时返回 *BrowserError
func OpenBrowserWithFallback(url string) error {
	return openWith(previewLaunchers(runtime.GOOS), url, startCommand)
}

func openWith(launchers []launcher, url string, start startFunc) error {
	bErr := &BrowserError{URL: url}
	for _, l := range launchers {
		err := start(l.name, append(append([]string(nil), l.args...), url)...)
		if err == nil {
			return nil
		}
		bErr.Tried = append(bErr.Tried, l.String())
		bErr.Err = err
	}
	return bErr
}

// FormatPercent 格式化百分比，0.7 → "70.00%"
func FormatPercent(value float64) string {
	return fmt.Sprintf("%.2f%%", value*100)
}

// FormatPercentTick 坐标轴刻度百分比，0.2 → "20%"
func FormatPercentTick(value float64) string {
	return fmt.Sprintf("%.0f%%", value*100)
}
