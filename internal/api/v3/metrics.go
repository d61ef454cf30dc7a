package v3

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cmpulse/internal/calculator"
	"cmpulse/internal/store"
)

// GetMetrics 指定日期（默认最近一期）的指标与评分
// GET /api/metrics?date=&team=
func (h *Handler) GetMetrics(c *gin.Context) {
	day, ok := parseDate(c, "date")
	if !ok {
		return
	}

	board, err := h.calc.Scoreboard(c.Request.Context(), calculator.Query{PeriodDate: day, TeamID: c.Query("team")})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "scoring configuration is missing"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, board)
}
