package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-collab/internal/service"
	pkglog "github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/response"
)

// HTTPHandler serves health and read-only room inspection.
type HTTPHandler struct {
	service service.CollabService
}

func NewHTTPHandler(svc service.CollabService) *HTTPHandler {
	return &HTTPHandler{
		service: svc,
	}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/v1")
	{
		api.GET("/rooms/:room_id", h.GetRoomInfo)
	}
}

// GetRoomInfo handles GET /api/v1/rooms/:room_id
func (h *HTTPHandler) GetRoomInfo(c *gin.Context) {
	ctx := c.Request.Context()
	l := pkglog.Ctx(ctx)

	roomID := strings.TrimSpace(c.Param("room_id"))
	if roomID == "" {
		response.BadRequest(c, "room_id is required")
		return
	}

	info, err := h.service.GetRoomInfo(ctx, roomID)
	if err != nil {
		l.Error().Err(err).Str(pkglog.FieldRoomID, roomID).Msg("failed to get room info")
		response.ServiceUnavailable(c, "room state is unavailable")
		return
	}

	if info.Participants == 0 && !info.HasContent && info.SessionDeadline == nil && info.MessageCount == 0 {
		response.NotFound(c, "room not found")
		return
	}

	response.Success(c, info)
}

// HealthCheck handles GET /health
func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
