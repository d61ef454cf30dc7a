package v3

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cmpulse/internal/store"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	Initialized   bool   `json:"initialized"`   // 是否已有指标数据
	ScoringReady  bool   `json:"scoringReady"`  // 是否已配置评分
	Teams         int    `json:"teams"`
	Mentors       int    `json:"mentors"`
	MetricRecords int    `json:"metricRecords"`
	ImportRuns    int    `json:"importRuns"`
	LatestPeriod  string `json:"latestPeriod"`
	LastImportAt  string `json:"lastImportAt"`
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.store.GetStats(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	_, err = h.store.GetScoringConfig(ctx)
	scoringReady := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := StatusResponse{
		Initialized:   stats.MetricRecords > 0,
		ScoringReady:  scoringReady,
		Teams:         stats.Teams,
		Mentors:       stats.Mentors,
		MetricRecords: stats.MetricRecords,
		ImportRuns:    stats.ImportRuns,
		LatestPeriod:  stats.LatestPeriod,
	}
	if runs, err := h.store.ListImportRuns(ctx, 1); err == nil && len(runs) > 0 {
		resp.LastImportAt = runs[0].CreatedAt.Format("2006-01-02 15:04:05")
	}

	c.JSON(http.StatusOK, resp)
}

type periodsResponse struct {
	Items []store.PeriodStat `json:"items"`
}

// ListPeriods 有数据的日期列表
// GET /api/periods
func (h *Handler) ListPeriods(c *gin.Context) {
	items, err := h.store.ListAvailablePeriods(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []store.PeriodStat{}
	}
	c.JSON(http.StatusOK, periodsResponse{Items: items})
}
