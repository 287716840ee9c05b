package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// StatusHandler serves the operator-facing read API: active sessions and the
// recent assessment history.
type StatusHandler struct {
	sessions    ports.SessionManager
	assessments ports.AssessmentRepository
}

func NewStatusHandler(sessions ports.SessionManager, assessments ports.AssessmentRepository) *StatusHandler {
	return &StatusHandler{sessions: sessions, assessments: assessments}
}

func (h *StatusHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/sessions", h.ListSessions)
	api.GET("/assessments/recent", h.ListRecentAssessments)
}

func (h *StatusHandler) ListSessions(c *gin.Context) {
	keys := h.sessions.ActiveSessions()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(keys),
		"sessions": keys,
	})
}

func (h *StatusHandler) ListRecentAssessments(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	assessments, err := h.assessments.ListRecent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":       len(assessments),
		"assessments": assessments,
		"fetched_at":  time.Now().UTC(),
	})
}
