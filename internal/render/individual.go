package render

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/crystelsherlock/quality-data/internal/chart"
	"github.com/crystelsherlock/quality-data/internal/model"
	"github.com/crystelsherlock/quality-data/internal/util"
)

// stripShare 分布条面板宽度占比
const stripShare = 0.3

// IndividualPlots 医生图表：左侧医生/诊所折线与目标线，右侧当前期分布条
func IndividualPlots(b *chart.IndividualBundle, opts Options) (*plot.Plot, *plot.Plot, error) {
	pal := opts.Palette

	left := newPercentPlot(true)
	left.X.Tick.Marker = plot.TimeTicks{Format: "Jan 2006"}
	if err := addSeries(left, seriesXYs(b.OwnSeries), pal.Provider, vg.Points(4)); err != nil {
		return nil, nil, err
	}
	if err := addSeries(left, seriesXYs(b.ClinicSeries), pal.Clinic, vg.Points(2)); err != nil {
		return nil, nil, err
	}
	addTargetRule(left, b.Target, pal.Target)

	right := newPercentPlot(false)
	right.HideX()
	right.X.Min = -1
	right.X.Max = 3

	if err := addTicks(right, b.CrossSection, pal.Strip); err != nil {
		return nil, nil, err
	}
	highlight := b.Highlight()
	if err := addTicks(right, highlight, pal.Provider); err != nil {
		return nil, nil, err
	}
	if err := addValueLabel(right, highlight); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// RenderIndividual 渲染医生图表 PNG
func RenderIndividual(w io.Writer, b *chart.IndividualBundle, opts Options) error {
	left, right, err := IndividualPlots(b, opts)
	if err != nil {
		return err
	}
	return writePanels(w, opts, left, right, stripShare)
}

// SaveIndividual 渲染医生图表到文件
func SaveIndividual(path string, b *chart.IndividualBundle, opts Options) error {
	return saveTo(path, func(w io.Writer) error {
		return RenderIndividual(w, b, opts)
	})
}

func tickXYs(obs []model.Observation) plotter.XYs {
	xys := make(plotter.XYs, 0, len(obs))
	for _, o := range obs {
		if v, ok := o.Value(); ok {
			xys = append(xys, plotter.XY{X: 0, Y: v})
		}
	}
	return xys
}

func addTicks(p *plot.Plot, obs []model.Observation, c color.Color) error {
	xys := tickXYs(obs)
	if len(xys) == 0 {
		return nil
	}
	ticks, err := plotter.NewScatter(xys)
	if err != nil {
		return fmt.Errorf("failed to build strip ticks: %w", err)
	}
	ticks.GlyphStyle.Color = c
	ticks.GlyphStyle.Radius = vg.Points(10)
	ticks.GlyphStyle.Shape = tickGlyph{}
	p.Add(ticks)
	return nil
}

// addValueLabel 在高亮刻度右侧标注百分比
func addValueLabel(p *plot.Plot, highlight []model.Observation) error {
	xys := tickXYs(highlight)
	if len(xys) == 0 {
		return nil
	}
	labels := make([]string, len(xys))
	for i, xy := range xys {
		labels[i] = util.FormatPercent(xy.Y)
	}
	l, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return fmt.Errorf("failed to build value label: %w", err)
	}
	for i := range l.TextStyle {
		l.TextStyle[i].Font.Size = vg.Points(14)
		l.TextStyle[i].XAlign = draw.XLeft
		l.TextStyle[i].YAlign = draw.YCenter
	}
	l.Offset = vg.Point{X: vg.Points(15)}
	p.Add(l)
	return nil
}
