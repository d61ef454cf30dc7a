package v3

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cmpulse/internal/model"
	"cmpulse/internal/store"
)

type teamsResponse struct {
	Items []model.Team `json:"items"`
}

// ListTeams 团队列表
// GET /api/teams
func (h *Handler) ListTeams(c *gin.Context) {
	items, err := h.store.ListTeams(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []model.Team{}
	}
	c.JSON(http.StatusOK, teamsResponse{Items: items})
}

type mentorsResponse struct {
	Items []model.Mentor `json:"items"`
	Total int            `json:"total"`
}

// ListMentors 人员列表，可按团队过滤
// GET /api/mentors?team=
func (h *Handler) ListMentors(c *gin.Context) {
	items, err := h.store.ListMentors(c.Request.Context(), store.MentorQueryOptions{TeamID: c.Query("team")})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []model.Mentor{}
	}
	c.JSON(http.StatusOK, mentorsResponse{Items: items, Total: len(items)})
}
