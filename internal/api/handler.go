package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crystelsherlock/quality-data/internal/model"
	"github.com/crystelsherlock/quality-data/internal/parser"
	"github.com/crystelsherlock/quality-data/internal/pipeline"
	"github.com/crystelsherlock/quality-data/internal/render"
)

// Handler 预览 API 处理器，只读地暴露一次加载的数据
type Handler struct {
	state   *pipeline.State
	opts    render.Options
	tracked []string
}

// NewHandler 创建 API 处理器
func NewHandler(state *pipeline.State, opts render.Options, tracked []string) *Handler {
	return &Handler{
		state:   state,
		opts:    opts,
		tracked: tracked,
	}
}

// RegisterRoutes 注册 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 数据状态
	router.GET("/status", h.GetStatus)

	// 实体与指标
	router.GET("/clinics", h.ListClinics)
	router.GET("/providers", h.ListProviders)
	router.GET("/metrics", h.ListMetrics)

	// 图表数据与即时渲染
	router.GET("/charts/individual", h.GetIndividualChart)
	router.GET("/charts/individual.png", h.GetIndividualPNG)
	router.GET("/charts/clinic", h.GetClinicChart)
	router.GET("/charts/clinic.png", h.GetClinicPNG)
}

// StatusResponse 数据状态响应
type StatusResponse struct {
	Rows              int      `json:"rows"`
	Files             int      `json:"files"`
	CurrentDate       string   `json:"currentDate"`
	EarliestDate      string   `json:"earliestDate"`
	UnresolvedNames   int      `json:"unresolvedNames"`
	UnresolvedMetrics int      `json:"unresolvedMetrics"`
	NullPercentages   int      `json:"nullPercentages"`
	TrackedMetrics    []string `json:"trackedMetrics"`
}

// GetStatus 获取数据状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	resp := StatusResponse{
		Rows:           h.state.Dataset.Len(),
		Files:          len(h.state.Files),
		CurrentDate:    parser.FormatDisplayDate(h.state.Deriver.LatestDate()),
		EarliestDate:   parser.FormatDisplayDate(h.state.Deriver.EarliestDate()),
		TrackedMetrics: h.tracked,
	}
	if r := h.state.Report; r != nil {
		resp.UnresolvedNames = r.UnresolvedNames
		resp.UnresolvedMetrics = r.UnresolvedMetrics
		resp.NullPercentages = r.NullPercentages
	}
	c.JSON(http.StatusOK, resp)
}

type clinicRow struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// ListClinics 诊所列表
// GET /api/clinics
func (h *Handler) ListClinics(c *gin.Context) {
	clinics := h.state.Dataset.Clinics()
	items := make([]clinicRow, 0, len(clinics))
	for _, name := range clinics {
		items = append(items, clinicRow{Name: name, Members: h.state.Names.MembersOf(name)})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

type providerRow struct {
	Name   string `json:"name"`
	Clinic string `json:"clinic"`
}

// ListProviders 医生列表，按首次出现顺序
// GET /api/providers
func (h *Handler) ListProviders(c *gin.Context) {
	providers := h.state.Dataset.Providers()
	items := make([]providerRow, 0, len(providers))
	for _, name := range providers {
		items = append(items, providerRow{Name: name, Clinic: h.state.ProviderClinic(name)})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

type metricRow struct {
	Name    string   `json:"name"`
	Target  *float64 `json:"target"`
	Tracked bool     `json:"tracked"`
}

// ListMetrics 指标列表及目标值
// GET /api/metrics
func (h *Handler) ListMetrics(c *gin.Context) {
	tracked := make(map[string]bool, len(h.tracked))
	for _, m := range h.tracked {
		tracked[m] = true
	}
	entries := h.state.Metrics.Entries()
	items := make([]metricRow, 0, len(entries))
	for _, e := range entries {
		items = append(items, metricRow{Name: e.Name, Target: e.Target, Tracked: tracked[e.Name]})
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

// chartQuery 解析 metric/name 查询参数并校验实体类型；失败时已写出响应
func (h *Handler) chartQuery(c *gin.Context, want model.EntityType) (string, string, bool) {
	metric := c.Query("metric")
	name := c.Query("name")
	if metric == "" || name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "metric and name are required"})
		return "", "", false
	}
	if _, ok := h.state.Metrics.ByDisplayName(metric); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown metric: " + metric})
		return "", "", false
	}
	entry, ok := h.state.Names.ByDisplayName(name)
	if !ok || entry.Type != want {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown " + string(want) + ": " + name})
		return "", "", false
	}
	return metric, name, true
}

// GetIndividualChart 医生图表数据
// GET /api/charts/individual?metric=&name=
func (h *Handler) GetIndividualChart(c *gin.Context) {
	metric, name, ok := h.chartQuery(c, model.EntityIndividual)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.state.Deriver.DeriveIndividual(metric, name))
}

// GetClinicChart 诊所图表数据，附带成员区间
// GET /api/charts/clinic?metric=&name=
func (h *Handler) GetClinicChart(c *gin.Context) {
	metric, name, ok := h.chartQuery(c, model.EntityClinic)
	if !ok {
		return
	}
	b := h.state.Deriver.DeriveClinic(metric, name)
	c.JSON(http.StatusOK, gin.H{"chart": b, "ranges": b.Ranges()})
}

// GetIndividualPNG 即时渲染医生图表
// GET /api/charts/individual.png?metric=&name=
func (h *Handler) GetIndividualPNG(c *gin.Context) {
	metric, name, ok := h.chartQuery(c, model.EntityIndividual)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.RenderIndividual(&buf, h.state.Deriver.DeriveIndividual(metric, name), h.opts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// GetClinicPNG 即时渲染诊所图表
// GET /api/charts/clinic.png?metric=&name=
func (h *Handler) GetClinicPNG(c *gin.Context) {
	metric, name, ok := h.chartQuery(c, model.EntityClinic)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := render.RenderClinic(&buf, h.state.Deriver.DeriveClinic(metric, name), h.opts); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
