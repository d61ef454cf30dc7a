package v3

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"cmpulse/internal/calculator"
	"cmpulse/internal/exporter"
	"cmpulse/internal/importer"
	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

// Handler V3 API 处理器
type Handler struct {
	store       *store.Store
	coordinator *importer.Coordinator
	calc        *calculator.Calculator
	exporter    *exporter.Exporter
	validate    *validator.Validate
	logger      *zap.Logger
}

// NewHandler 创建 V3 API 处理器
func NewHandler(st *store.Store, opts importer.Options, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	calc := calculator.NewCalculator(st)
	return &Handler{
		store:       st,
		coordinator: importer.NewCoordinator(st, logger, opts),
		calc:        calc,
		exporter:    exporter.NewExporter(calc),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      logger,
	}
}

// RegisterRoutes 注册 V3 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)
	router.GET("/periods", h.ListPeriods)

	// 团队与人员
	router.GET("/teams", h.ListTeams)
	router.GET("/mentors", h.ListMentors)

	// 指标与评分
	router.GET("/metrics", h.GetMetrics)
	router.GET("/config/scoring", h.GetScoringConfig)
	router.PATCH("/config/scoring", h.UpdateScoringConfig)

	// 数据导入
	router.POST("/import", h.Import)
	router.POST("/import/stream", h.ImportStream)
	router.GET("/imports", h.ListImports)

	// 数据导出
	router.GET("/export", h.Export)
}

// parseDate 解析可选的 YYYY-MM-DD 查询参数
func parseDate(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	d, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + ", expected YYYY-MM-DD"})
		return nil, false
	}
	return &d, true
}
