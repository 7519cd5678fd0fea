package render

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/crystelsherlock/quality-data/internal/chart"
)

// rangeShare 成员区间面板宽度占比
const rangeShare = 0.5

// ClinicPlots 诊所图表：左侧诊所折线与目标线，右侧每位成员首末两期区间及当前值
func ClinicPlots(b *chart.ClinicBundle, opts Options) (*plot.Plot, *plot.Plot, error) {
	pal := opts.Palette

	left := newPercentPlot(true)
	left.X.Tick.Marker = plot.TimeTicks{Format: "Jan 2006"}
	if err := addSeries(left, seriesXYs(b.OwnSeries), pal.Clinic, vg.Points(4)); err != nil {
		return nil, nil, err
	}
	addTargetRule(left, b.Target, pal.Target)

	right := newPercentPlot(true)
	ranges := b.Ranges()
	if len(ranges) == 0 {
		right.HideX()
	} else {
		names := make([]string, len(ranges))
		for i, r := range ranges {
			names[i] = r.Name
		}
		right.NominalX(names...)
		right.X.Tick.Label.Rotation = math.Pi / 2
		right.X.Tick.Label.XAlign = draw.XRight
		right.X.Tick.Label.YAlign = draw.YCenter
	}

	var current plotter.XYs
	for i, r := range ranges {
		x := float64(i)
		if r.Start != nil && r.Current != nil {
			seg, err := plotter.NewLine(plotter.XYs{{X: x, Y: *r.Start}, {X: x, Y: *r.Current}})
			if err != nil {
				return nil, nil, fmt.Errorf("failed to build range for %s: %w", r.Name, err)
			}
			seg.Color = pal.Range
			seg.Width = vg.Points(2)
			right.Add(seg)
		}
		if r.Current != nil {
			current = append(current, plotter.XY{X: x, Y: *r.Current})
		}
	}
	if len(current) > 0 {
		dots, err := plotter.NewScatter(current)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build current values: %w", err)
		}
		dots.GlyphStyle.Color = pal.Provider
		dots.GlyphStyle.Radius = vg.Points(5)
		dots.GlyphStyle.Shape = draw.CircleGlyph{}
		right.Add(dots)
	}
	addTargetRule(right, b.Target, pal.Target)

	return left, right, nil
}

// RenderClinic 渲染诊所图表 PNG
func RenderClinic(w io.Writer, b *chart.ClinicBundle, opts Options) error {
	left, right, err := ClinicPlots(b, opts)
	if err != nil {
		return err
	}
	return writePanels(w, opts, left, right, rangeShare)
}

// SaveClinic 渲染诊所图表到文件
func SaveClinic(path string, b *chart.ClinicBundle, opts Options) error {
	return saveTo(path, func(w io.Writer) error {
		return RenderClinic(w, b, opts)
	})
}
