package dataset

import (
	"errors"
	"sort"
	"time"

	"github.com/crystelsherlock/quality-data/internal/model"
)

// ErrEmptyDataset 数据集中没有任何观测记录
var ErrEmptyDataset = errors.New("dataset is empty: no observations were ingested")

// Dataset 统一长表，构建完成后只读，可被并发读取
type Dataset struct {
	obs []model.Observation
}

// New 由观测记录构造数据集（复制输入）
func New(obs []model.Observation) *Dataset {
	return &Dataset{obs: append([]model.Observation(nil), obs...)}
}

// Concat 按顺序拼接多个文件的观测记录
func Concat(parts ...[]model.Observation) *Dataset {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	obs := make([]model.Observation, 0, n)
	for _, p := range parts {
		obs = append(obs, p...)
	}
	return &Dataset{obs: obs}
}

// Len 记录数
func (d *Dataset) Len() int {
	return len(d.obs)
}

// Observations 全部记录的副本
func (d *Dataset) Observations() []model.Observation {
	return append([]model.Observation(nil), d.obs...)
}

// Filter 返回满足条件的记录（保持原始顺序）
func (d *Dataset) Filter(pred func(model.Observation) bool) []model.Observation {
	var out []model.Observation
	for _, o := range d.obs {
		if pred(o) {
			out = append(out, o)
		}
	}
	return out
}

// Clinics 诊所显示名（去重、升序）
func (d *Dataset) Clinics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range d.obs {
		if o.Type != model.EntityClinic || o.Name == "" {
			continue
		}
		if _, ok := seen[o.Name]; ok {
			continue
		}
		seen[o.Name] = struct{}{}
		out = append(out, o.Name)
	}
	sort.Strings(out)
	return out
}

// Providers 医生显示名（去重，按首次出现顺序）
func (d *Dataset) Providers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range d.obs {
		if o.Type != model.EntityIndividual || o.Name == "" {
			continue
		}
		if _, ok := seen[o.Name]; ok {
			continue
		}
		seen[o.Name] = struct{}{}
		out = append(out, o.Name)
	}
	return out
}

// Metrics 出现过的指标显示名（去重、升序）
func (d *Dataset) Metrics() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range d.obs {
		if o.Metric == "" {
			continue
		}
		if _, ok := seen[o.Metric]; ok {
			continue
		}
		seen[o.Metric] = struct{}{}
		out = append(out, o.Metric)
	}
	sort.Strings(out)
	return out
}

// LatestDate 最新观测日期
func (d *Dataset) LatestDate() (time.Time, error) {
	if len(d.obs) == 0 {
		return time.Time{}, ErrEmptyDataset
	}
	latest := d.obs[0].Date
	for _, o := range d.obs[1:] {
		if o.Date.After(latest) {
			latest = o.Date
		}
	}
	return latest, nil
}

// EarliestDate 最早观测日期
func (d *Dataset) EarliestDate() (time.Time, error) {
	if len(d.obs) == 0 {
		return time.Time{}, ErrEmptyDataset
	}
	earliest := d.obs[0].Date
	for _, o := range d.obs[1:] {
		if o.Date.Before(earliest) {
			earliest = o.Date
		}
	}
	return earliest, nil
}

// Dates 出现过的日期（去重、升序）
func (d *Dataset) Dates() []time.Time {
	seen := make(map[time.Time]struct{})
	var out []time.Time
	for _, o := range d.obs {
		if _, ok := seen[o.Date]; ok {
			continue
		}
		seen[o.Date] = struct{}{}
		out = append(out, o.Date)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// SortByDate 按日期稳定排序（原地）
func SortByDate(obs []model.Observation) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].Date.Before(obs[j].Date)
	})
}
