package handler

import (
	"chemformula/internal/auth"
	"chemformula/internal/repository"
	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	base
	activityService service.ActivityService
}

func NewActivityHandler(activityService service.ActivityService, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{base: base{log: log}, activityService: activityService}
}

func (h *ActivityHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	group := router.Group("/api/activity-logs", g.Auth, g.Require(auth.CapViewActivity))
	{
		group.GET("", h.ListActivity)
	}
}

// ListActivity returns paginated activity rows with the acting user preloaded
// @Summary      Get activity logs
// @Tags         activity
// @Security     BearerAuth
// @Produce      json
// @Param        page         query  int     false  "Page number (default 1)"
// @Param        limit        query  int     false  "Number of items per page (default 20)"
// @Param        user_id      query  int     false  "Acting user"
// @Param        entity_type  query  string  false  "Formula, Quote, Resource, User, Approval or Setting"
// @Param        entity_id    query  string  false  "Entity id"
// @Param        action       query  string  false  "CREATE, UPDATE, DELETE, ..."
// @Router       /api/activity-logs [get]
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	userID, err := queryUint(c, "user_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := repository.ActivityFilter{
		UserID:     userID,
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Action:     c.Query("action"),
	}
	p := pagination.Parse(c, service.ActivitySorting)
	logs, total, err := h.activityService.List(c.Request.Context(), filter, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, logs, total, p)
}
