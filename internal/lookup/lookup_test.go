package lookup

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/crystelsherlock/quality-data/internal/model"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const namesCSV = `MeridiosName,Name,Type,Clinic
SMITH^JOHN,Dr. Smith,Individual,North Clinic
DOE^JANE,Dr. Doe,Individual,North Clinic
ROE^RICH,Dr. Roe,Individual,South Clinic
NORTH,North Clinic,Clinic,North Clinic
SOUTH,South Clinic,Clinic,South Clinic
`

func TestLoadNameLookup_Resolve(t *testing.T) {
	t.Parallel()

	l, err := LoadNameLookup(writeCSV(t, "names.csv", namesCSV))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Len() != 5 {
		t.Fatalf("len=%d, want 5", l.Len())
	}

	e, ok := l.Resolve("SMITH^JOHN")
	if !ok {
		t.Fatalf("SMITH^JOHN not resolved")
	}
	if e.Name != "Dr. Smith" || e.Type != model.EntityIndividual || e.Clinic != "North Clinic" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if _, ok := l.Resolve("UNKNOWN"); ok {
		t.Fatalf("unknown key should not resolve")
	}
	if c, ok := l.Resolve("NORTH"); !ok || c.Type != model.EntityClinic {
		t.Fatalf("unexpected clinic entry: %+v", c)
	}
}

func TestNameLookup_MembersOfSorted(t *testing.T) {
	t.Parallel()

	l, err := LoadNameLookup(writeCSV(t, "names.csv", namesCSV))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := l.MembersOf("North Clinic")
	want := []string{"Dr. Doe", "Dr. Smith"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("members=%v, want %v", got, want)
	}
	if got := l.MembersOf(""); len(got) != 0 {
		t.Fatalf("blank clinic should have no members, got %v", got)
	}
	if got := l.ClinicOf("Dr. Roe"); got != "South Clinic" {
		t.Fatalf("clinic=%q", got)
	}
	if got := l.ClinicOf("Dr. Nobody"); got != "" {
		t.Fatalf("clinic of unknown provider=%q", got)
	}
}

func TestLoadNameLookup_MissingKeyColumn(t *testing.T) {
	t.Parallel()

	_, err := LoadNameLookup(writeCSV(t, "names.csv", "Name,Type,Clinic\nDr. A,Individual,X\n"))
	var malformed *MalformedLookupError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedLookupError, got %v", err)
	}
}

func TestLoadNameLookup_DuplicateKeys(t *testing.T) {
	t.Parallel()

	content := namesCSV + "SMITH^JOHN,Dr. John Smith,Individual,South Clinic\n"
	path := writeCSV(t, "names.csv", content)

	l, err := LoadNameLookup(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	e, _ := l.Resolve("SMITH^JOHN")
	if e.Name != "Dr. John Smith" {
		t.Fatalf("last row should win, got %+v", e)
	}
	if got := l.Duplicates(); !reflect.DeepEqual(got, []string{"SMITH^JOHN"}) {
		t.Fatalf("duplicates=%v", got)
	}

	_, err = LoadNameLookup(path, Strict(true))
	var malformed *MalformedLookupError
	if !errors.As(err, &malformed) {
		t.Fatalf("strict load: want MalformedLookupError, got %v", err)
	}
}

func TestLoadMetricLookup_Targets(t *testing.T) {
	t.Parallel()

	content := "MeridiosMetric,Metric,Target\n" +
		"0101,Mammogram,0.75\n" +
		"0102,AAA,\n" +
		"0103,Chlamydia,0\n"
	l, err := LoadMetricLookup(writeCSV(t, "metrics.csv", content))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if e, ok := l.Resolve("0101"); !ok || e.Name != "Mammogram" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if got := l.Target("Mammogram"); got == nil || *got != 0.75 {
		t.Fatalf("Mammogram target=%v", got)
	}
	if got := l.Target("AAA"); got != nil {
		t.Fatalf("AAA should have no target, got %v", *got)
	}
	if got := l.Target("Chlamydia"); got == nil || *got != 0 {
		t.Fatalf("explicit zero target must be present, got %v", got)
	}
	if got := l.Target("Not A Metric"); got != nil {
		t.Fatalf("unknown metric target=%v", *got)
	}
}

func TestLoadMetricLookup_NoTargetColumn(t *testing.T) {
	t.Parallel()

	l, err := LoadMetricLookup(writeCSV(t, "metrics.csv", "MeridiosMetric,Metric\nX,AAA\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if l.Target("AAA") != nil {
		t.Fatalf("target should be absent")
	}
}

func TestLoadMetricLookup_TargetOutOfRange(t *testing.T) {
	t.Parallel()

	_, err := LoadMetricLookup(writeCSV(t, "metrics.csv", "MeridiosMetric,Metric,Target\nX,AAA,75\n"))
	var malformed *MalformedLookupError
	if !errors.As(err, &malformed) {
		t.Fatalf("want MalformedLookupError, got %v", err)
	}
}
