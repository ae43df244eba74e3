package handler

import (
	"net/http"
	"time"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	base
	statisticsService service.StatisticsService
}

func NewStatisticsHandler(statisticsService service.StatisticsService, log *logger.Logger) *StatisticsHandler {
	return &StatisticsHandler{base: base{log: log}, statisticsService: statisticsService}
}

func (h *StatisticsHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	statsGroup := router.Group("/api/statistics", g.Auth)
	{
		statsGroup.GET("", g.Require(auth.CapViewActivity), h.GetStatistics)
	}
}

// @Summary      Get Dashboard Statistics
// @Description  Formula, quote and resource counts, approved quote value and most used chemicals bounded by time
// @Tags         Statistics
// @Produce      json
// @Param        start_date query string false "Start Date (RFC3339)"
// @Param        end_date   query string false "End Date (RFC3339)"
// @Success      200 {object} response.Response{data=model.StatisticsResponse}
// @Failure      400 {object} response.Response "Invalid date format"
// @Security     BearerAuth
// @Router       /api/statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	// Default to the current month if no dates are provided
	now := time.Now().UTC()
	startDate := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	endDate := now

	if s := c.Query("start_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.fail(c, apperr.Validation("invalid start_date format, expected RFC3339"))
			return
		}
		startDate = t
	}
	if s := c.Query("end_date"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.fail(c, apperr.Validation("invalid end_date format, expected RFC3339"))
			return
		}
		endDate = t
	}

	stats, err := h.statisticsService.GetStatistics(c.Request.Context(), startDate, endDate)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, stats)
}
