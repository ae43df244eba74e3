package handler

import (
	"net/http"
	"strings"

	"chemformula/internal/auth"
	"chemformula/internal/middleware"
	"chemformula/internal/repository"
	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

type QuoteHandler struct {
	base
	quoteService service.QuoteService
}

func NewQuoteHandler(quoteService service.QuoteService, log *logger.Logger) *QuoteHandler {
	return &QuoteHandler{base: base{log: log}, quoteService: quoteService}
}

func (h *QuoteHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	quotes := router.Group("/api/quotes", g.Auth)
	{
		quotes.GET("", h.ListQuotes)
		quotes.GET("/:id", h.GetQuote)
		quotes.POST("", g.Require(auth.CapWriteQuotes), h.CreateQuote)
		quotes.PUT("/:id", g.Require(auth.CapWriteQuotes), h.UpdateQuote)
		quotes.DELETE("/:id", g.Require(auth.CapWriteQuotes), h.DeleteQuote)
		quotes.POST("/:id/approve", g.Require(auth.CapApprove), h.ApproveQuote)
		quotes.POST("/:id/reject", g.Require(auth.CapApprove), h.RejectQuote)
	}
}

func (h *QuoteHandler) ListQuotes(c *gin.Context) {
	createdBy, err := queryUint(c, "created_by")
	if err != nil {
		h.fail(c, err)
		return
	}
	formulaID, err := queryUint(c, "formula_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := repository.QuoteFilter{
		Status:    c.Query("status"),
		CreatedBy: createdBy,
		FormulaID: formulaID,
		Search:    strings.TrimSpace(c.Query("search")),
	}
	p := pagination.Parse(c, service.QuoteSorting)
	quotes, total, err := h.quoteService.List(c.Request.Context(), filter, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, quotes, total, p)
}

func (h *QuoteHandler) GetQuote(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	quote, err := h.quoteService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, quote)
}

func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req service.CreateQuoteRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	quote, err := h.quoteService.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, quote, "Quote created")
}

func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.UpdateQuoteRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	quote, err := h.quoteService.Update(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, quote, "Quote updated")
}

func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.quoteService.Delete(c.Request.Context(), middleware.CurrentPrincipal(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, nil, "Quote deleted")
}

func (h *QuoteHandler) ApproveQuote(c *gin.Context) {
	decideEntity(c, h.base, h.quoteService.Approve, "Quote approved")
}

func (h *QuoteHandler) RejectQuote(c *gin.Context) {
	decideEntity(c, h.base, h.quoteService.Reject, "Quote rejected")
}
