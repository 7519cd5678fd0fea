package render

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/image/colornames"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/crystelsherlock/quality-data/internal/model"
	"github.com/crystelsherlock/quality-data/internal/util"
)

// Palette 图表配色
type Palette struct {
	Provider color.Color
	Clinic   color.Color
	Target   color.Color
	Range    color.Color
	Strip    color.Color
}

// DefaultPalette 医生蓝、诊所橙、目标线绿
func DefaultPalette() Palette {
	return Palette{
		Provider: color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
		Clinic:   color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
		Target:   colornames.Green,
		Range:    color.RGBA{R: 0xae, G: 0xc7, B: 0xe8, A: 0xff},
		Strip:    color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff},
	}
}

// Options 渲染参数，宽高为整张图（两个面板合计）
type Options struct {
	Width   vg.Length
	Height  vg.Length
	Palette Palette
}

// DefaultOptions 默认渲染参数
func DefaultOptions() Options {
	return Options{
		Width:   vg.Points(320),
		Height:  vg.Points(200),
		Palette: DefaultPalette(),
	}
}

// ParseColor 解析 "#rrggbb"、"#rgb" 或 CSS 颜色名
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// withAlpha 返回不透明颜色 c 的半透明版本
func withAlpha(c color.Color, a uint8) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: a}
}

// percentTicks Y 轴固定刻度 0%..100%
func percentTicks(labels bool) plot.ConstantTicks {
	ticks := make(plot.ConstantTicks, 0, 6)
	for i := 0; i <= 5; i++ {
		v := float64(i) / 5
		label := ""
		if labels {
			label = util.FormatPercentTick(v)
		}
		ticks = append(ticks, plot.Tick{Value: v, Label: label})
	}
	return ticks
}

// newPercentPlot Y 轴固定为 [0,1] 的空白图
func newPercentPlot(yLabels bool) *plot.Plot {
	p := plot.New()
	p.Y.Min = 0
	p.Y.Max = 1
	p.Y.Tick.Marker = percentTicks(yLabels)
	p.Add(plotter.NewGrid())
	return p
}

// timeX 日期转为横轴坐标
func timeX(t time.Time) float64 {
	return float64(t.Unix())
}

// seriesXYs 时间序列转为坐标点，跳过空百分比
func seriesXYs(obs []model.Observation) plotter.XYs {
	xys := make(plotter.XYs, 0, len(obs))
	for _, o := range obs {
		v, ok := o.Value()
		if !ok {
			continue
		}
		xys = append(xys, plotter.XY{X: timeX(o.Date), Y: v})
	}
	return xys
}

// addSeries 添加折线；单点序列额外画点，空序列跳过
func addSeries(p *plot.Plot, xys plotter.XYs, c color.Color, width vg.Length) error {
	if len(xys) == 0 {
		return nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return fmt.Errorf("failed to build series line: %w", err)
	}
	line.Color = c
	line.Width = width
	p.Add(line)

	if len(xys) == 1 {
		pts, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("failed to build series point: %w", err)
		}
		pts.GlyphStyle.Color = c
		pts.GlyphStyle.Radius = width
		pts.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(pts)
	}
	return nil
}

// addTargetRule 添加虚线目标线；target 为 nil 时不添加
func addTargetRule(p *plot.Plot, target *float64, c color.Color) {
	if target == nil {
		return
	}
	y := *target
	rule := plotter.NewFunction(func(float64) float64 { return y })
	rule.Color = withAlpha(c, 0x80)
	rule.Width = vg.Points(1)
	rule.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(rule)
}

// tickGlyph 水平短线，用于分布条
type tickGlyph struct{}

// DrawGlyph implements draw.GlyphDrawer
func (tickGlyph) DrawGlyph(c *draw.Canvas, sty draw.GlyphStyle, pt vg.Point) {
	ls := draw.LineStyle{Color: sty.Color, Width: vg.Points(1.5)}
	c.StrokeLine2(ls, pt.X-sty.Radius, pt.Y, pt.X+sty.Radius, pt.Y)
}

// writePanels 左右两个面板并排输出为 PNG，rightShare 为右侧面板宽度占比
func writePanels(w io.Writer, opts Options, left, right *plot.Plot, rightShare float64) error {
	img := vgimg.New(opts.Width, opts.Height)
	dc := draw.New(img)

	split := opts.Width * vg.Length(1-rightShare)
	left.Draw(draw.Crop(dc, 0, split-opts.Width, 0, 0))
	right.Draw(draw.Crop(dc, split, 0, 0, 0))

	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// saveTo 渲染到文件
func saveTo(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create chart directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
