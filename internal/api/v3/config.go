package v3

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

// coreMetricsPatch 四项指标的部分更新
type coreMetricsPatch struct {
	CC    *float64 `json:"cc" validate:"omitempty,gte=0"`
	SC    *float64 `json:"sc" validate:"omitempty,gte=0"`
	UP    *float64 `json:"up" validate:"omitempty,gte=0"`
	Fixed *float64 `json:"fixed" validate:"omitempty,gte=0"`
}

func (p *coreMetricsPatch) apply(dst *model.CoreMetrics) {
	if p == nil {
		return
	}
	if p.CC != nil {
		dst.CC = *p.CC
	}
	if p.SC != nil {
		dst.SC = *p.SC
	}
	if p.UP != nil {
		dst.UP = *p.UP
	}
	if p.Fixed != nil {
		dst.Fixed = *p.Fixed
	}
}

// UpdateScoringRequest 评分配置更新请求（未提供的字段保持不变）
type UpdateScoringRequest struct {
	Targets          *coreMetricsPatch `json:"targets"`
	Weights          *coreMetricsPatch `json:"weights"`
	AboveThreshold   *float64          `json:"aboveThreshold" validate:"omitempty,gt=0"`
	WarningThreshold *float64          `json:"warningThreshold" validate:"omitempty,gt=0"`
}

// GetScoringConfig 获取评分配置
// GET /api/config/scoring
func (h *Handler) GetScoringConfig(c *gin.Context) {
	cfg, err := h.store.GetScoringConfig(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "scoring configuration is missing"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// UpdateScoringConfig 部分更新评分配置；不存在时以默认值为基础
// PATCH /api/config/scoring
func (h *Handler) UpdateScoringConfig(c *gin.Context) {
	ctx := c.Request.Context()

	var req UpdateScoringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}

	cfg := model.DefaultScoringConfig()
	current, err := h.store.GetScoringConfig(ctx)
	switch {
	case err == nil:
		cfg = *current
	case !errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	req.Targets.apply(&cfg.Targets)
	req.Weights.apply(&cfg.Weights)
	if req.AboveThreshold != nil {
		cfg.AboveThreshold = *req.AboveThreshold
	}
	if req.WarningThreshold != nil {
		cfg.WarningThreshold = *req.WarningThreshold
	}

	if err := h.validate.Struct(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}
	if cfg.Weights.Sum() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "weights must not all be zero"})
		return
	}

	if err := h.store.SaveScoringConfig(ctx, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fe.Namespace() + " failed " + fe.Tag() + " " + fe.Param()
}
