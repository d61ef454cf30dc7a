package v3

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"cmpulse/internal/exporter"
	"cmpulse/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Export 导出记分板 Excel
// GET /api/export?date=&team=
func (h *Handler) Export(c *gin.Context) {
	day, ok := parseDate(c, "date")
	if !ok {
		return
	}

	f, board, err := h.exporter.Export(c.Request.Context(), exporter.ExportOptions{PeriodDate: day, TeamID: c.Query("team")}, nil)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusPreconditionFailed, gin.H{"error": "scoring configuration is missing"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write workbook"})
		return
	}

	c.Header("Content-Disposition", exportContentDisposition(board.PeriodDate))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func exportContentDisposition(period string) string {
	if period == "" {
		period = "empty"
	}
	return fmt.Sprintf("attachment; filename=\"scorecards-%s.xlsx\"", period)
}
