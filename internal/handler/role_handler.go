package handler

import (
	"net/http"

	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	base
	roleService service.RoleService
}

func NewRoleHandler(roleService service.RoleService, log *logger.Logger) *RoleHandler {
	return &RoleHandler{base: base{log: log}, roleService: roleService}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	router.GET("/api/roles", g.Auth, h.ListRoles)
}

// ListRoles returns the seeded roles with their capabilities
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.roleService.ListRoles(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, roles)
}
