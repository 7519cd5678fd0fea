package chart

import (
	"sort"
	"time"

	"github.com/crystelsherlock/quality-data/internal/dataset"
	"github.com/crystelsherlock/quality-data/internal/lookup"
	"github.com/crystelsherlock/quality-data/internal/model"
)

// Deriver 从统一长表派生图表数据；只读，可被多个 goroutine 同时使用
type Deriver struct {
	ds       *dataset.Dataset
	names    *lookup.NameLookup
	metrics  *lookup.MetricLookup
	earliest time.Time
	latest   time.Time
}

// NewDeriver 创建派生器，数据集为空时返回 dataset.ErrEmptyDataset
func NewDeriver(ds *dataset.Dataset, names *lookup.NameLookup, metrics *lookup.MetricLookup) (*Deriver, error) {
	latest, err := ds.LatestDate()
	if err != nil {
		return nil, err
	}
	earliest, err := ds.EarliestDate()
	if err != nil {
		return nil, err
	}
	return &Deriver{
		ds:       ds,
		names:    names,
		metrics:  metrics,
		earliest: earliest,
		latest:   latest,
	}, nil
}

// EarliestDate 数据集最早日期
func (d *Deriver) EarliestDate() time.Time { return d.earliest }

// LatestDate 数据集最新日期（当前期）
func (d *Deriver) LatestDate() time.Time { return d.latest }

// IndividualBundle 单个医生、单个指标的图表数据
type IndividualBundle struct {
	Metric       string              `json:"metric"`
	Provider     string              `json:"provider"`
	Clinic       string              `json:"clinic"`
	OwnSeries    []model.Observation `json:"ownSeries"`
	ClinicSeries []model.Observation `json:"clinicSeries"`
	Target       *float64            `json:"target"`
	CurrentDate  time.Time           `json:"currentDate"`
	CrossSection []model.Observation `json:"crossSection"` // 当前期所有医生，用于分布条
}

// Highlight 当前期横截面中属于该医生的记录
func (b *IndividualBundle) Highlight() []model.Observation {
	var out []model.Observation
	for _, o := range b.CrossSection {
		if o.Name == b.Provider {
			out = append(out, o)
		}
	}
	return out
}

// HasTarget 是否绘制目标线
func (b *IndividualBundle) HasTarget() bool { return b.Target != nil }

// DeriveIndividual 派生医生图表数据
//
// 医生所属诊所无法解析时 ClinicSeries 为空，不视为错误。
func (d *Deriver) DeriveIndividual(metric, provider string) *IndividualBundle {
	b := &IndividualBundle{
		Metric:      metric,
		Provider:    provider,
		Clinic:      d.names.ClinicOf(provider),
		Target:      d.metrics.Target(metric),
		CurrentDate: d.latest,
	}

	b.OwnSeries = d.series(func(o model.Observation) bool {
		return o.Metric == metric && o.Type == model.EntityIndividual && o.Name == provider
	})
	if b.Clinic != "" {
		b.ClinicSeries = d.series(func(o model.Observation) bool {
			return o.Metric == metric && o.Name == b.Clinic
		})
	}
	b.CrossSection = d.ds.Filter(func(o model.Observation) bool {
		return o.Metric == metric && o.Type == model.EntityIndividual && o.Date.Equal(d.latest)
	})
	return b
}

// ClinicBundle 单个诊所、单个指标的图表数据
type ClinicBundle struct {
	Metric           string              `json:"metric"`
	Clinic           string              `json:"clinic"`
	OwnSeries        []model.Observation `json:"ownSeries"`
	Target           *float64            `json:"target"`
	Members          []string            `json:"members"`
	StartDate        time.Time           `json:"startDate"`
	CurrentDate      time.Time           `json:"currentDate"`
	EndpointSnapshot []model.Observation `json:"endpointSnapshot"` // 成员在最早、最新两期的记录
	CrossSection     []model.Observation `json:"crossSection"`     // 成员在最新一期的记录
}

// HasTarget 是否绘制目标线
func (b *ClinicBundle) HasTarget() bool { return b.Target != nil }

// MemberRange 成员医生首末两期的取值
type MemberRange struct {
	Name    string   `json:"name"`
	Start   *float64 `json:"start"`
	Current *float64 `json:"current"`
}

// Ranges 每个成员医生的首末两期取值（按成员顺序）；两期都没有记录的成员不返回
func (b *ClinicBundle) Ranges() []MemberRange {
	byName := make(map[string]*MemberRange, len(b.Members))
	for _, o := range b.EndpointSnapshot {
		r, ok := byName[o.Name]
		if !ok {
			r = &MemberRange{Name: o.Name}
			byName[o.Name] = r
		}
		if o.Date.Equal(b.StartDate) {
			r.Start = o.Percentage
		}
		if o.Date.Equal(b.CurrentDate) {
			r.Current = o.Percentage
		}
	}
	out := make([]MemberRange, 0, len(byName))
	for _, name := range b.Members {
		if r, ok := byName[name]; ok {
			out = append(out, *r)
		}
	}
	return out
}

// DeriveClinic 派生诊所图表数据
func (d *Deriver) DeriveClinic(metric, clinic string) *ClinicBundle {
	b := &ClinicBundle{
		Metric:      metric,
		Clinic:      clinic,
		Target:      d.metrics.Target(metric),
		Members:     d.names.MembersOf(clinic),
		StartDate:   d.earliest,
		CurrentDate: d.latest,
	}

	b.OwnSeries = d.series(func(o model.Observation) bool {
		return o.Metric == metric && o.Type == model.EntityClinic && o.Name == clinic
	})

	members := make(map[string]struct{}, len(b.Members))
	for _, m := range b.Members {
		members[m] = struct{}{}
	}
	start := d.snapshot(metric, members, d.earliest)
	current := d.snapshot(metric, members, d.latest)

	b.CrossSection = current
	if d.earliest.Equal(d.latest) {
		b.EndpointSnapshot = append([]model.Observation(nil), current...)
	} else {
		b.EndpointSnapshot = append(append([]model.Observation(nil), start...), current...)
	}
	return b
}

// series 满足条件的记录，按日期排序
func (d *Deriver) series(pred func(model.Observation) bool) []model.Observation {
	out := d.ds.Filter(pred)
	dataset.SortByDate(out)
	return out
}

// snapshot 某一期成员医生的记录，每个成员至多一条（同日期多文件时后导入的生效），按成员名排序
func (d *Deriver) snapshot(metric string, members map[string]struct{}, date time.Time) []model.Observation {
	rows := d.ds.Filter(func(o model.Observation) bool {
		if o.Metric != metric || !o.Date.Equal(date) {
			return false
		}
		_, ok := members[o.Name]
		return ok
	})

	latest := make(map[string]model.Observation, len(members))
	var order []string
	for _, o := range rows {
		if _, seen := latest[o.Name]; !seen {
			order = append(order, o.Name)
		}
		latest[o.Name] = o
	}
	sort.Strings(order)
	out := make([]model.Observation, 0, len(order))
	for _, name := range order {
		out = append(out, latest[name])
	}
	return out
}

// DeriveIndividual 从数据集和对照表直接派生医生图表数据
func DeriveIndividual(ds *dataset.Dataset, names *lookup.NameLookup, metrics *lookup.MetricLookup, metric, provider string) (*IndividualBundle, error) {
	d, err := NewDeriver(ds, names, metrics)
	if err != nil {
		return nil, err
	}
	return d.DeriveIndividual(metric, provider), nil
}

// DeriveClinic 从数据集和对照表直接派生诊所图表数据
func DeriveClinic(ds *dataset.Dataset, names *lookup.NameLookup, metrics *lookup.MetricLookup, metric, clinic string) (*ClinicBundle, error) {
	d, err := NewDeriver(ds, names, metrics)
	if err != nil {
		return nil, err
	}
	return d.DeriveClinic(metric, clinic), nil
}
