package lookup

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/crystelsherlock/quality-data/internal/model"
	"github.com/crystelsherlock/quality-data/internal/parser"
)

// 对照表列名（大小写不敏感）
const (
	NameKeyColumn   = "MeridiosName"
	NameColumn      = "Name"
	TypeColumn      = "Type"
	ClinicColumn    = "Clinic"
	MetricKeyColumn = "MeridiosMetric"
	MetricColumn    = "Metric"
	TargetColumn    = "Target"
)

// MalformedLookupError 对照表结构不合法
type MalformedLookupError struct {
	Path   string
	Reason string
}

func (e *MalformedLookupError) Error() string {
	return fmt.Sprintf("malformed lookup table %s: %s", e.Path, e.Reason)
}

type loadOptions struct {
	strict bool
}

// Option 加载选项
type Option func(*loadOptions)

// Strict 重复键视为错误（默认后出现的覆盖先出现的）
func Strict(strict bool) Option {
	return func(o *loadOptions) {
		o.strict = strict
	}
}

func applyOptions(opts []Option) loadOptions {
	var o loadOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// NameLookup 名称对照表：原始标识 → 显示名/类型/所属诊所
type NameLookup struct {
	entries    map[string]model.NameEntry
	order      []string // 原始标识，按首次出现顺序
	duplicates []string
}

// LoadNameLookup 加载名称对照表（CSV 或 Excel）
func LoadNameLookup(path string, opts ...Option) (*NameLookup, error) {
	o := applyOptions(opts)

	table, err := parser.ReadTable(path)
	if err != nil {
		return nil, err
	}

	keyIdx, err := requireColumn(table, NameKeyColumn)
	if err != nil {
		return nil, err
	}
	nameIdx, err := requireColumn(table, NameColumn)
	if err != nil {
		return nil, err
	}
	typeIdx, err := requireColumn(table, TypeColumn)
	if err != nil {
		return nil, err
	}
	clinicIdx, err := requireColumn(table, ClinicColumn)
	if err != nil {
		return nil, err
	}

	l := &NameLookup{entries: make(map[string]model.NameEntry)}
	for i, row := range table.Rows {
		if parser.IsBlankRow(row) {
			continue
		}
		key := table.Value(row, keyIdx)
		if key == "" {
			return nil, &MalformedLookupError{Path: path, Reason: fmt.Sprintf("row %d: blank %s", i+2, NameKeyColumn)}
		}
		if _, dup := l.entries[key]; dup {
			if o.strict {
				return nil, &MalformedLookupError{Path: path, Reason: fmt.Sprintf("row %d: duplicate key %q", i+2, key)}
			}
			l.duplicates = append(l.duplicates, key)
		} else {
			l.order = append(l.order, key)
		}
		l.entries[key] = model.NameEntry{
			RawID:  key,
			Name:   table.Value(row, nameIdx),
			Type:   model.ParseEntityType(table.Value(row, typeIdx)),
			Clinic: table.Value(row, clinicIdx),
		}
	}
	return l, nil
}

// NewNameLookup 由条目构造对照表（后出现的覆盖先出现的）
func NewNameLookup(entries ...model.NameEntry) *NameLookup {
	l := &NameLookup{entries: make(map[string]model.NameEntry, len(entries))}
	for _, e := range entries {
		if _, dup := l.entries[e.RawID]; dup {
			l.duplicates = append(l.duplicates, e.RawID)
		} else {
			l.order = append(l.order, e.RawID)
		}
		l.entries[e.RawID] = e
	}
	return l
}

// Resolve 按原始标识查找，未命中返回 false
func (l *NameLookup) Resolve(key string) (model.NameEntry, bool) {
	e, ok := l.entries[key]
	return e, ok
}

// ByDisplayName 按显示名查找第一个条目
func (l *NameLookup) ByDisplayName(name string) (model.NameEntry, bool) {
	if name == "" {
		return model.NameEntry{}, false
	}
	for _, key := range l.order {
		if e := l.entries[key]; e.Name == name {
			return e, true
		}
	}
	return model.NameEntry{}, false
}

// ClinicOf 医生所属诊所，未知时返回空串
func (l *NameLookup) ClinicOf(provider string) string {
	e, ok := l.ByDisplayName(provider)
	if !ok {
		return ""
	}
	return e.Clinic
}

// Entries 所有条目，按首次出现顺序
func (l *NameLookup) Entries() []model.NameEntry {
	out := make([]model.NameEntry, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, l.entries[key])
	}
	return out
}

// MembersOf 某诊所下的医生显示名（去重、升序）
func (l *NameLookup) MembersOf(clinic string) []string {
	if clinic == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, key := range l.order {
		e := l.entries[key]
		if e.Type != model.EntityIndividual || e.Clinic != clinic || e.Name == "" {
			continue
		}
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e.Name)
	}
	sort.Strings(out)
	return out
}

// Duplicates 被覆盖的重复键
func (l *NameLookup) Duplicates() []string {
	return append([]string(nil), l.duplicates...)
}

// Len 条目数
func (l *NameLookup) Len() int {
	return len(l.entries)
}

// MetricLookup 指标对照表：原始指标代码 → 显示名/目标值
type MetricLookup struct {
	entries    map[string]model.MetricEntry
	order      []string
	duplicates []string
}

// LoadMetricLookup 加载指标对照表（CSV 或 Excel）
func LoadMetricLookup(path string, opts ...Option) (*MetricLookup, error) {
	o := applyOptions(opts)

	table, err := parser.ReadTable(path)
	if err != nil {
		return nil, err
	}

	keyIdx, err := requireColumn(table, MetricKeyColumn)
	if err != nil {
		return nil, err
	}
	metricIdx, err := requireColumn(table, MetricColumn)
	if err != nil {
		return nil, err
	}
	// Target 列可以整体缺失
	targetIdx := table.Col(TargetColumn)

	l := &MetricLookup{entries: make(map[string]model.MetricEntry)}
	for i, row := range table.Rows {
		if parser.IsBlankRow(row) {
			continue
		}
		key := table.Value(row, keyIdx)
		if key == "" {
			return nil, &MalformedLookupError{Path: path, Reason: fmt.Sprintf("row %d: blank %s", i+2, MetricKeyColumn)}
		}

		target, err := parseTarget(table.Value(row, targetIdx))
		if err != nil {
			return nil, &MalformedLookupError{Path: path, Reason: fmt.Sprintf("row %d: %v", i+2, err)}
		}

		if _, dup := l.entries[key]; dup {
			if o.strict {
				return nil, &MalformedLookupError{Path: path, Reason: fmt.Sprintf("row %d: duplicate key %q", i+2, key)}
			}
			l.duplicates = append(l.duplicates, key)
		} else {
			l.order = append(l.order, key)
		}
		l.entries[key] = model.MetricEntry{
			RawCode: key,
			Name:    table.Value(row, metricIdx),
			Target:  target,
		}
	}
	return l, nil
}

// NewMetricLookup 由条目构造对照表（后出现的覆盖先出现的）
func NewMetricLookup(entries ...model.MetricEntry) *MetricLookup {
	l := &MetricLookup{entries: make(map[string]model.MetricEntry, len(entries))}
	for _, e := range entries {
		if _, dup := l.entries[e.RawCode]; dup {
			l.duplicates = append(l.duplicates, e.RawCode)
		} else {
			l.order = append(l.order, e.RawCode)
		}
		l.entries[e.RawCode] = e
	}
	return l
}

// Resolve 按原始指标代码查找
func (l *MetricLookup) Resolve(code string) (model.MetricEntry, bool) {
	e, ok := l.entries[code]
	return e, ok
}

// ByDisplayName 按显示名查找第一个条目
func (l *MetricLookup) ByDisplayName(metric string) (model.MetricEntry, bool) {
	if metric == "" {
		return model.MetricEntry{}, false
	}
	for _, key := range l.order {
		if e := l.entries[key]; e.Name == metric {
			return e, true
		}
	}
	return model.MetricEntry{}, false
}

// Target 指标目标值；未配置或指标不存在时返回 nil
func (l *MetricLookup) Target(metric string) *float64 {
	e, ok := l.ByDisplayName(metric)
	if !ok || e.Target == nil {
		return nil
	}
	v := *e.Target
	return &v
}

// Entries 所有条目，按首次出现顺序
func (l *MetricLookup) Entries() []model.MetricEntry {
	out := make([]model.MetricEntry, 0, len(l.order))
	for _, key := range l.order {
		out = append(out, l.entries[key])
	}
	return out
}

// Duplicates 被覆盖的重复键
func (l *MetricLookup) Duplicates() []string {
	return append([]string(nil), l.duplicates...)
}

// Len 条目数
func (l *MetricLookup) Len() int {
	return len(l.entries)
}

func requireColumn(table *parser.Table, name string) (int, error) {
	idx := table.Col(name)
	if idx < 0 {
		return -1, &MalformedLookupError{Path: table.Path, Reason: fmt.Sprintf("missing column %q", name)}
	}
	return idx, nil
}

// parseTarget 解析目标值，空值表示未配置；必须位于 [0,1]
func parseTarget(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("target %s out of range [0,1]", raw)
	}
	v := d.InexactFloat64()
	return &v, nil
}
