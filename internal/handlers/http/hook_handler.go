package http

import (
	"net/http"

	"github.com/blaketylerfullerton/aerialintelligence/internal/core/domain"
	"github.com/blaketylerfullerton/aerialintelligence/internal/core/ports"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HookHandler receives the media server's publish lifecycle callbacks
// (nginx-rtmp on_publish / on_publish_done form posts) and translates them
// into session starts and stops.
type HookHandler struct {
	sessions ports.SessionManager
	logger   *zap.SugaredLogger
}

func NewHookHandler(sessions ports.SessionManager, logger *zap.SugaredLogger) *HookHandler {
	return &HookHandler{sessions: sessions, logger: logger}
}

func (h *HookHandler) SetupRoutes(router *gin.Engine) {
	hooks := router.Group("/hooks")
	{
		hooks.POST("/publish", h.OnPublish)
		hooks.POST("/publish_done", h.OnPublishDone)
	}
}

// OnPublish starts a capture session for the stream that began publishing.
// Anything other than 200 tells the media server to reject the publish, so
// this always accepts.
func (h *HookHandler) OnPublish(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	h.logger.Infow("publish hook received", "name", name, "app", c.PostForm("app"))
	h.sessions.OnStreamStart(domain.StreamKey(name))
	c.Status(http.StatusOK)
}

// OnPublishDone stops the capture session for the stream that ended.
func (h *HookHandler) OnPublishDone(c *gin.Context) {
	name := c.PostForm("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
		return
	}

	h.logger.Infow("publish_done hook received", "name", name, "app", c.PostForm("app"))
	h.sessions.OnStreamStop(domain.StreamKey(name))
	c.Status(http.StatusOK)
}
