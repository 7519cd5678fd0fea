package dataset

import (
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/crystelsherlock/quality-data/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func obs(name string, typ model.EntityType, metric string, date time.Time, pct float64) model.Observation {
	return model.Observation{
		Name:       name,
		Type:       typ,
		Metric:     metric,
		Percentage: model.Float64Ptr(pct),
		Date:       date,
	}
}

func sample() *Dataset {
	return Concat(
		[]model.Observation{
			obs("Dr. Zed", model.EntityIndividual, "AAA", day(2020, 2, 1), 0.5),
			obs("South Clinic", model.EntityClinic, "AAA", day(2020, 2, 1), 0.4),
			obs("Dr. Amy", model.EntityIndividual, "AAA", day(2020, 2, 1), 0.6),
		},
		[]model.Observation{
			obs("North Clinic", model.EntityClinic, "AAA", day(2020, 1, 1), 0.3),
			obs("Dr. Zed", model.EntityIndividual, "Mammogram", day(2020, 1, 1), 0.7),
			obs("South Clinic", model.EntityClinic, "Mammogram", day(2020, 1, 1), 0.2),
			{Name: "", Type: model.EntityUnknown, Metric: "", Date: day(2020, 3, 1)},
		},
	)
}

func TestClinics_SortedDistinct(t *testing.T) {
	t.Parallel()

	got := sample().Clinics()
	want := []string{"North Clinic", "South Clinic"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("clinics=%v, want %v", got, want)
	}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("clinics not sorted: %v", got)
	}
}

func TestProviders_FirstSeenOrder(t *testing.T) {
	t.Parallel()

	got := sample().Providers()
	want := []string{"Dr. Zed", "Dr. Amy"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("providers=%v, want %v", got, want)
	}
}

func TestDateBounds(t *testing.T) {
	t.Parallel()

	ds := sample()
	latest, err := ds.LatestDate()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if !latest.Equal(day(2020, 3, 1)) {
		t.Fatalf("latest=%s", latest)
	}
	earliest, err := ds.EarliestDate()
	if err != nil {
		t.Fatalf("earliest: %v", err)
	}
	if !earliest.Equal(day(2020, 1, 1)) {
		t.Fatalf("earliest=%s", earliest)
	}
	if got := len(ds.Dates()); got != 3 {
		t.Fatalf("dates=%d, want 3", got)
	}
}

func TestEmptyDataset(t *testing.T) {
	t.Parallel()

	ds := New(nil)
	if _, err := ds.LatestDate(); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("latest: want ErrEmptyDataset, got %v", err)
	}
	if _, err := ds.EarliestDate(); !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("earliest: want ErrEmptyDataset, got %v", err)
	}
	if len(ds.Clinics()) != 0 || len(ds.Providers()) != 0 {
		t.Fatalf("empty dataset should have no entities")
	}
}

func TestObservationsIsACopy(t *testing.T) {
	t.Parallel()

	ds := sample()
	got := ds.Observations()
	got[0].Name = "mutated"
	if ds.Observations()[0].Name != "Dr. Zed" {
		t.Fatalf("dataset mutated through returned slice")
	}
}

func TestSortByDate_Stable(t *testing.T) {
	t.Parallel()

	rows := []model.Observation{
		obs("b", model.EntityIndividual, "AAA", day(2020, 2, 1), 0),
		obs("a", model.EntityIndividual, "AAA", day(2020, 1, 1), 0),
		obs("c", model.EntityIndividual, "AAA", day(2020, 2, 1), 0),
	}
	SortByDate(rows)
	var names []string
	for _, r := range rows {
		names = append(names, r.Name)
	}
	if !reflect.DeepEqual(names, []string{"a", "b", "c"}) {
		t.Fatalf("order=%v", names)
	}
}
