package exporter

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/lookup"
	"github.com/crystelsherlock/quality-data/internal/model"
)

// 工作簿 sheet 名称
const (
	SheetObservations = "Observations"
	SheetLatest       = "Latest"
	SheetTargets      = "Targets"
)

// DateLayout 导出文件中的日期格式
const DateLayout = "2006-01-02"

// percentNumFmt Excel 内置格式 0.00%
const percentNumFmt = 10

var observationHeaders = []interface{}{"Date", "Name", "Type", "Clinic", "Metric", "Percentage"}

// WriteWorkbook 导出统一长表为 Excel：全部记录、最新一期、指标目标
func WriteWorkbook(path string, ds *dataset.Dataset, metrics *lookup.MetricLookup) error {
	latest, err := ds.LatestDate()
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return err
	}

	if err := f.SetSheetName("Sheet1", SheetObservations); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeObservationSheet(f, SheetObservations, ds.Observations(), styles); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetLatest); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetLatest, err)
	}
	current := ds.Filter(func(o model.Observation) bool { return o.Date.Equal(latest) })
	if err := writeObservationSheet(f, SheetLatest, current, styles); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetTargets); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", SheetTargets, err)
	}
	if err := writeTargetSheet(f, metrics.Entries(), styles); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

type workbookStyles struct {
	header  int
	percent int
}

func newWorkbookStyles(f *excelize.File) (workbookStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#EEEEEE"}},
	})
	if err != nil {
		return workbookStyles{}, fmt.Errorf("failed to create header style: %w", err)
	}
	percent, err := f.NewStyle(&excelize.Style{NumFmt: percentNumFmt})
	if err != nil {
		return workbookStyles{}, fmt.Errorf("failed to create percent style: %w", err)
	}
	return workbookStyles{header: header, percent: percent}, nil
}

func writeHeader(f *excelize.File, sheet string, headers []interface{}, styles workbookStyles) error {
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, styles.header); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeObservationSheet(f *excelize.File, sheet string, obs []model.Observation, styles workbookStyles) error {
	if err := writeHeader(f, sheet, observationHeaders, styles); err != nil {
		return err
	}
	for i, o := range obs {
		var pct interface{}
		if v, ok := o.Value(); ok {
			pct = v
		}
		row := []interface{}{o.Date.Format(DateLayout), o.Name, string(o.Type), o.Clinic, o.Metric, pct}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}
	if err := f.SetColStyle(sheet, "F", styles.percent); err != nil {
		return fmt.Errorf("failed to style %s percentages: %w", sheet, err)
	}
	return f.SetColWidth(sheet, "B", "E", 22)
}

func writeTargetSheet(f *excelize.File, entries []model.MetricEntry, styles workbookStyles) error {
	if err := writeHeader(f, SheetTargets, []interface{}{"Code", "Metric", "Target"}, styles); err != nil {
		return err
	}
	for i, e := range entries {
		var target interface{}
		if e.Target != nil {
			target = *e.Target
		}
		row := []interface{}{e.RawCode, e.Name, target}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetTargets, cell, &row); err != nil {
			return fmt.Errorf("failed to write target row %d: %w", i+2, err)
		}
	}
	if err := f.SetColStyle(SheetTargets, "C", styles.percent); err != nil {
		return fmt.Errorf("failed to style targets: %w", err)
	}
	return f.SetColWidth(SheetTargets, "B", "B", 26)
}
