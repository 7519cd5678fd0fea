package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/lookup"
	"github.com/crystelsherlock/quality-data/internal/model"
	"github.com/crystelsherlock/quality-data/internal/parser"
)

const exportHeader = "NAME,Metricname,SeenNum,SeenDenom\n"

func writeExport(t *testing.T, dir, name, rows string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(exportHeader+rows), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testLookups() (*lookup.NameLookup, *lookup.MetricLookup) {
	names := lookup.NewNameLookup(
		model.NameEntry{RawID: "A^DR", Name: "Dr. A", Type: model.EntityIndividual, Clinic: "Clinic X"},
		model.NameEntry{RawID: "CLX", Name: "Clinic X", Type: model.EntityClinic, Clinic: "Clinic X"},
	)
	metrics := lookup.NewMetricLookup(
		model.MetricEntry{RawCode: "0101", Name: "Mammogram", Target: model.Float64Ptr(0.75)},
	)
	return names, metrics
}

func TestBuildDataset_TwoMonths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{
		writeExport(t, dir, "01.01.2020 export.csv", "A^DR,0101,7,10\n"),
		writeExport(t, dir, "02.01.2020 export.csv", "A^DR,0101,9,10\n"),
	}
	names, metrics := testLookups()

	ds, err := BuildDataset(paths, names, metrics)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("len=%d, want 2", ds.Len())
	}

	got := ds.Observations()
	wantDates := []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	wantPct := []float64{0.7, 0.9}
	for i, o := range got {
		if o.Name != "Dr. A" || o.Type != model.EntityIndividual || o.Clinic != "Clinic X" || o.Metric != "Mammogram" {
			t.Fatalf("row %d not enriched: %+v", i, o)
		}
		if !o.Date.Equal(wantDates[i]) {
			t.Fatalf("row %d date=%s, want %s", i, o.Date, wantDates[i])
		}
		v, ok := o.Value()
		if !ok || v != wantPct[i] {
			t.Fatalf("row %d pct=%v, want %v", i, o.Percentage, wantPct[i])
		}
	}
}

func TestBuildDataset_ShortDateTokenAbortsRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	paths := []string{
		writeExport(t, dir, "01.01.2020 export.csv", "A^DR,0101,7,10\n"),
		writeExport(t, dir, "1.1.2020 export.csv", "A^DR,0101,9,10\n"),
	}
	names, metrics := testLookups()

	ds, err := BuildDataset(paths, names, metrics)
	var dateErr *parser.InvalidFilenameDateError
	if !errors.As(err, &dateErr) {
		t.Fatalf("want InvalidFilenameDateError, got %v", err)
	}
	if ds != nil {
		t.Fatalf("no dataset should be produced on failure")
	}
}

func TestIngestFile_UnresolvedKeysKeepRow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeExport(t, dir, "03.15.2018 export.csv", "GHOST,0101,1,2\nA^DR,9999,1,4\n")
	names, metrics := testLookups()

	res, err := ingestFile(path, names, metrics)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Stats.Rows != 2 {
		t.Fatalf("rows=%d, want 2", res.Stats.Rows)
	}
	if o := res.Observations[0]; o.Name != "" || o.Type != model.EntityUnknown || o.Metric != "Mammogram" {
		t.Fatalf("unresolved name should leave empty fields: %+v", o)
	}
	if o := res.Observations[1]; o.Name != "Dr. A" || o.Metric != "" {
		t.Fatalf("unresolved metric should leave empty metric: %+v", o)
	}
	if !reflect.DeepEqual(res.Stats.UnresolvedNames, []string{"GHOST"}) {
		t.Fatalf("unresolved names=%v", res.Stats.UnresolvedNames)
	}
	if !reflect.DeepEqual(res.Stats.UnresolvedMetrics, []string{"9999"}) {
		t.Fatalf("unresolved metrics=%v", res.Stats.UnresolvedMetrics)
	}
}

func TestComputePercentage(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		num, den string
		want     *float64
	}{
		"rounded to basis points": {"1", "3", model.Float64Ptr(0.3333)},
		"rounded up":              {"2", "3", model.Float64Ptr(0.6667)},
		"whole":                   {"10", "10", model.Float64Ptr(1)},
		"quotient just below tie": {"3", "20000", model.Float64Ptr(0.0001)},
		"exact tie to even down":  {"1", "32", model.Float64Ptr(0.0312)},
		"exact tie to even up":    {"3", "32", model.Float64Ptr(0.0938)},
		"decimal inputs":          {"1.5", "2", model.Float64Ptr(0.75)},
		"zero denominator":        {"0", "0", nil},
		"blank denominator":       {"4", "", nil},
		"blank numerator":         {"", "4", nil},
	}
	for name, tc := range cases {
		got, err := ComputePercentage(tc.num, tc.den)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		switch {
		case tc.want == nil && got != nil:
			t.Fatalf("%s: want nil, got %v", name, *got)
		case tc.want != nil && (got == nil || *got != *tc.want):
			t.Fatalf("%s: got %v, want %v", name, got, *tc.want)
		}
	}
}

func TestIngestFile_NonNumericIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeExport(t, dir, "01.01.2020 export.csv", "A^DR,0101,seven,10\n")
	names, metrics := testLookups()

	_, err := IngestFile(path, names, metrics)
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("want RowError, got %v", err)
	}
	if rowErr.Line != 2 || rowErr.Column != parser.ColNumerator || rowErr.File != "01.01.2020 export.csv" {
		t.Fatalf("unexpected row error: %+v", rowErr)
	}
}

func TestCoordinator_IdempotentAndOrdered(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeExport(t, dir, "01.01.2020 export.csv", "A^DR,0101,7,10\nCLX,0101,3,4\n")
	writeExport(t, dir, "02.01.2020 export.csv", "A^DR,0101,9,10\nCLX,0101,0,0\n")
	writeExport(t, dir, "03.01.2020 export.csv", "A^DR,0101,1,3\n")
	paths, err := DiscoverExports(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	names, metrics := testLookups()

	first, report, err := NewCoordinator(names, metrics, nil).WithWorkers(3).Import(context.Background(), paths)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	second, _, err := NewCoordinator(names, metrics, nil).WithWorkers(1).Import(context.Background(), paths)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if !reflect.DeepEqual(first.Observations(), second.Observations()) {
		t.Fatalf("re-ingesting identical input produced a different dataset")
	}

	sequential, err := BuildDataset(paths, names, metrics)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !reflect.DeepEqual(first.Observations(), sequential.Observations()) {
		t.Fatalf("parallel import differs from sequential fold")
	}

	if report.TotalRows != 5 || len(report.Files) != 3 {
		t.Fatalf("report rows=%d files=%d", report.TotalRows, len(report.Files))
	}
	if report.NullPercentages != 1 {
		t.Fatalf("null percentages=%d, want 1", report.NullPercentages)
	}
}

func TestCoordinator_EmptyDataset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeExport(t, dir, "01.01.2020 export.csv", "")
	names, metrics := testLookups()

	_, _, err := NewCoordinator(names, metrics, nil).Import(context.Background(), []string{path})
	if !errors.Is(err, dataset.ErrEmptyDataset) {
		t.Fatalf("want ErrEmptyDataset, got %v", err)
	}
}

func TestCoordinator_InvalidFilenameBeforeReading(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeExport(t, dir, "01.01.2020 export.csv", "A^DR,0101,7,10\n")
	bad := filepath.Join(dir, "2020-01-01.csv")

	names, metrics := testLookups()

	_, _, err := NewCoordinator(names, metrics, nil).Import(context.Background(), []string{good, bad})
	var dateErr *parser.InvalidFilenameDateError
	if !errors.As(err, &dateErr) {
		t.Fatalf("want InvalidFilenameDateError, got %v", err)
	}
}

func TestDiscoverExports_OnlyCSVFilesSorted(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeExport(t, dir, "12.01.2019 c.csv", "")
	writeExport(t, dir, "02.01.2020 b.csv", "")
	writeExport(t, dir, "01.01.2020 a.csv", "")
	writeExport(t, dir, "01.01.2020 notes.txt", "")
	writeExport(t, dir, "01.01.2020 lookup.xlsx", "")
	if err := os.Mkdir(filepath.Join(dir, "03.01.2020 archive.csv"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := DiscoverExports(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{
		filepath.Join(dir, "01.01.2020 a.csv"),
		filepath.Join(dir, "02.01.2020 b.csv"),
		filepath.Join(dir, "12.01.2019 c.csv"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("exports=%v, want %v", got, want)
	}
}

func TestDiscoverExports_EmptyDir(t *testing.T) {
	t.Parallel()

	got, err := DiscoverExports(t.TempDir())
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("exports=%v, want none", got)
	}
}
