package site

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/crystelsherlock/quality-data/internal/parser"
)

// 模板占位符
const (
	SlotProvider      = "{{{Provider}}}"
	SlotClinic        = "{{{Clinic}}}"
	SlotCurrentDate   = "{{{Current Date}}}"
	SlotCharts        = "{{{Charts}}}"
	SlotClinics       = "{{{Clinics}}}"
	SlotProviderCards = "{{{Provider-Index-Cards}}}"
)

// IndexFile 每个目录下的页面文件名
const IndexFile = "index.html"

//go:embed templates/*.html
var defaultTemplates embed.FS

// FolderName 实体目录名：空格替换为下划线
func FolderName(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// ChartFileName 指标图表文件名
func ChartFileName(metric string) string {
	return FolderName(metric) + ".png"
}

// Templates 页面模板原文
type Templates struct {
	Page string // 医生/诊所页
	Base string // 根目录首页
}

// LoadTemplates 读取模板文件；路径为空或文件不存在时使用内置模板
func LoadTemplates(pagePath, basePath string) (*Templates, error) {
	page, err := readTemplate(pagePath, "templates/index.html")
	if err != nil {
		return nil, err
	}
	base, err := readTemplate(basePath, "templates/index-base.html")
	if err != nil {
		return nil, err
	}
	return &Templates{Page: page, Base: base}, nil
}

// DefaultTemplates 内置模板
func DefaultTemplates() *Templates {
	t, err := LoadTemplates("", "")
	if err != nil {
		panic(err)
	}
	return t
}

func readTemplate(path, fallback string) (string, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to read template %s: %w", path, err)
		}
	}
	data, err := defaultTemplates.ReadFile(fallback)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded template %s: %w", fallback, err)
	}
	return string(data), nil
}

var fragments = template.Must(template.New("fragments").Parse(`
{{- define "dropdown" -}}
<div class="uk-inline"><div class="uk-text-lead{{if .Bold}} uk-text-bold{{end}}" style="color:{{.Color}}">{{.Title}}<span uk-icon="icon: triangle-down"></span></div><div uk-dropdown><ul class="uk-nav uk-dropdown-nav">
{{range .Items}}{{if .Active}}<li class="uk-active">{{.Label}}<span uk-icon="icon: check"></span></li>
{{else}}<li><a href="../{{.Folder}}/">{{.Label}}</a></li>
{{end}}{{end}}</ul></div></div>
{{- end -}}

{{- define "pills" -}}
<div uk-filter="target: .js-filter"><ul class="uk-subnav uk-subnav-pill">
{{range .}}<li uk-filter-control=".tag-{{.Tag}}"><a href="#">{{.Label}}</a></li>
{{end}}</ul>
{{- end -}}

{{- define "cards" -}}
<ul class="js-filter uk-grid-match uk-card-small uk-text-center" uk-grid>
{{range .}}<li class="tag-{{.Tag}}"><a href="./{{.Folder}}/"><div class="uk-card uk-width-medium uk-card-hover uk-card-default uk-card-body">{{.Label}}</div></a></li>
{{end}}</ul>
{{- end -}}

{{- define "charts" -}}
<div class="uk-child-width-1-2@m uk-grid-small" uk-grid>
{{range .}}<div><h3 class="uk-h4">{{.Label}}</h3><img src="{{.File}}" alt="{{.Label}}"></div>
{{end}}</div>
{{- end -}}
`))

type menuItem struct {
	Label  string
	Folder string
	Active bool
}

type dropdown struct {
	Title string
	Color template.CSS
	Bold  bool
	Items []menuItem
}

type pill struct {
	Label string
	Tag   string
}

type card struct {
	Label  string
	Tag    string
	Folder string
}

type chartImage struct {
	Label string
	File  string
}

func execFragment(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := fragments.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s fragment: %w", name, err)
	}
	return buf.String(), nil
}

// Builder 生成静态站点页面
type Builder struct {
	outDir        string
	templates     *Templates
	metrics       []string
	providerColor string
	clinicColor   string
}

// NewBuilder 创建页面生成器，metrics 为每页展示的指标顺序
func NewBuilder(outDir string, tpl *Templates, metrics []string) *Builder {
	if tpl == nil {
		tpl = DefaultTemplates()
	}
	return &Builder{
		outDir:        outDir,
		templates:     tpl,
		metrics:       append([]string(nil), metrics...),
		providerColor: "#1f77b4",
		clinicColor:   "#ff7f0e",
	}
}

// WithColors 设置下拉菜单标题颜色（与图表配色一致）
func (b *Builder) WithColors(provider, clinic string) *Builder {
	if provider != "" {
		b.providerColor = provider
	}
	if clinic != "" {
		b.clinicColor = clinic
	}
	return b
}

// OutDir 输出根目录
func (b *Builder) OutDir() string { return b.outDir }

// EntityDir 实体输出目录
func (b *Builder) EntityDir(name string) string {
	return filepath.Join(b.outDir, FolderName(name))
}

// ChartPath 实体某指标图表的输出路径
func (b *Builder) ChartPath(name, metric string) string {
	return filepath.Join(b.EntityDir(name), ChartFileName(metric))
}

// ProviderPage 医生页：同诊所医生下拉（当前医生高亮）、全部诊所下拉
func (b *Builder) ProviderPage(provider, clinic string, colleagues, clinics []string, current time.Time) (string, error) {
	providerMenu := dropdown{Title: provider, Color: template.CSS(b.providerColor), Bold: true}
	for _, name := range colleagues {
		providerMenu.Items = append(providerMenu.Items, menuItem{Label: name, Folder: FolderName(name), Active: name == provider})
	}
	clinicMenu := dropdown{Title: clinic, Color: template.CSS(b.clinicColor)}
	for _, name := range clinics {
		clinicMenu.Items = append(clinicMenu.Items, menuItem{Label: name, Folder: FolderName(name)})
	}
	return b.entityPage(providerMenu, clinicMenu, current)
}

// ClinicPage 诊所页：成员医生下拉、全部诊所下拉（当前诊所高亮）
func (b *Builder) ClinicPage(clinic string, members, clinics []string, current time.Time) (string, error) {
	providerMenu := dropdown{Title: "Providers", Color: template.CSS(b.providerColor)}
	for _, name := range members {
		providerMenu.Items = append(providerMenu.Items, menuItem{Label: name, Folder: FolderName(name)})
	}
	clinicMenu := dropdown{Title: clinic, Color: template.CSS(b.clinicColor), Bold: true}
	for _, name := range clinics {
		clinicMenu.Items = append(clinicMenu.Items, menuItem{Label: name, Folder: FolderName(name), Active: name == clinic})
	}
	return b.entityPage(providerMenu, clinicMenu, current)
}

func (b *Builder) entityPage(providerMenu, clinicMenu dropdown, current time.Time) (string, error) {
	providerHTML, err := execFragment("dropdown", providerMenu)
	if err != nil {
		return "", err
	}
	clinicHTML, err := execFragment("dropdown", clinicMenu)
	if err != nil {
		return "", err
	}
	images := make([]chartImage, 0, len(b.metrics))
	for _, m := range b.metrics {
		images = append(images, chartImage{Label: m, File: ChartFileName(m)})
	}
	chartsHTML, err := execFragment("charts", images)
	if err != nil {
		return "", err
	}

	r := strings.NewReplacer(
		SlotProvider, providerHTML,
		SlotClinic, clinicHTML,
		SlotCurrentDate, parser.FormatDisplayDate(current),
		SlotCharts, chartsHTML,
	)
	return r.Replace(b.templates.Page), nil
}

// ProviderCard 首页医生卡片
type ProviderCard struct {
	Name   string
	Clinic string
}

// RootIndex 首页：诊所筛选标签 + 医生卡片
func (b *Builder) RootIndex(clinics []string, providers []ProviderCard, current time.Time) (string, error) {
	pills := make([]pill, 0, len(clinics))
	for _, c := range clinics {
		pills = append(pills, pill{Label: c, Tag: FolderName(c)})
	}
	cards := make([]card, 0, len(providers))
	for _, p := range providers {
		cards = append(cards, card{Label: p.Name, Tag: FolderName(p.Clinic), Folder: FolderName(p.Name)})
	}

	pillsHTML, err := execFragment("pills", pills)
	if err != nil {
		return "", err
	}
	cardsHTML, err := execFragment("cards", cards)
	if err != nil {
		return "", err
	}

	r := strings.NewReplacer(
		SlotClinics, pillsHTML,
		SlotProviderCards, cardsHTML,
		SlotCurrentDate, parser.FormatDisplayDate(current),
	)
	return r.Replace(b.templates.Base), nil
}

// WriteProviderPage 写出 <out>/<Provider>/index.html
func (b *Builder) WriteProviderPage(provider, clinic string, colleagues, clinics []string, current time.Time) (string, error) {
	html, err := b.ProviderPage(provider, clinic, colleagues, clinics, current)
	if err != nil {
		return "", err
	}
	path := filepath.Join(b.EntityDir(provider), IndexFile)
	return path, writeFileAtomic(path, []byte(html))
}

// WriteClinicPage 写出 <out>/<Clinic>/index.html
func (b *Builder) WriteClinicPage(clinic string, members, clinics []string, current time.Time) (string, error) {
	html, err := b.ClinicPage(clinic, members, clinics, current)
	if err != nil {
		return "", err
	}
	path := filepath.Join(b.EntityDir(clinic), IndexFile)
	return path, writeFileAtomic(path, []byte(html))
}

// WriteRootIndex 写出 <out>/index.html
func (b *Builder) WriteRootIndex(clinics []string, providers []ProviderCard, current time.Time) (string, error) {
	html, err := b.RootIndex(clinics, providers, current)
	if err != nil {
		return "", err
	}
	path := filepath.Join(b.outDir, IndexFile)
	return path, writeFileAtomic(path, []byte(html))
}
