package handler

import (
	"net/http"

	"chemformula/internal/auth"
	"chemformula/internal/middleware"
	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

type SettingHandler struct {
	base
	settingService service.SettingService
}

func NewSettingHandler(settingService service.SettingService, log *logger.Logger) *SettingHandler {
	return &SettingHandler{base: base{log: log}, settingService: settingService}
}

func (h *SettingHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	settings := router.Group("/api/settings", g.Auth)
	{
		settings.GET("", h.ListSettings)
		settings.GET("/:key", h.GetSetting)
		settings.PUT("/:key", g.Require(auth.CapManageSettings), h.UpdateSetting)
	}
}

func (h *SettingHandler) ListSettings(c *gin.Context) {
	settings, err := h.settingService.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, settings)
}

func (h *SettingHandler) GetSetting(c *gin.Context) {
	setting, err := h.settingService.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, setting)
}

func (h *SettingHandler) UpdateSetting(c *gin.Context) {
	var req service.UpdateSettingRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	setting, err := h.settingService.Set(c.Request.Context(), middleware.CurrentPrincipal(c), c.Param("key"), req.Value)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, setting, "Setting updated")
}
