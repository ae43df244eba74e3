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

type FormulaHandler struct {
	base
	formulaService service.FormulaService
}

func NewFormulaHandler(formulaService service.FormulaService, log *logger.Logger) *FormulaHandler {
	return &FormulaHandler{base: base{log: log}, formulaService: formulaService}
}

func (h *FormulaHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	formulas := router.Group("/api/formulas", g.Auth)
	{
		formulas.GET("", h.ListFormulas)
		formulas.GET("/:id", h.GetFormula)
		formulas.POST("", g.Require(auth.CapWriteFormulas), h.CreateFormula)
		formulas.PUT("/:id", g.Require(auth.CapWriteFormulas), h.UpdateFormula)
		formulas.DELETE("/:id", g.Require(auth.CapWriteFormulas), h.DeleteFormula)
		formulas.POST("/:id/approve", g.Require(auth.CapApprove), h.ApproveFormula)
		formulas.POST("/:id/reject", g.Require(auth.CapApprove), h.RejectFormula)

		formulas.GET("/:id/components", h.ListComponents)
		formulas.POST("/:id/components", g.Require(auth.CapWriteFormulas), h.AddComponent)
		formulas.PUT("/:id/components/:componentId", g.Require(auth.CapWriteFormulas), h.UpdateComponent)
		formulas.DELETE("/:id/components/:componentId", g.Require(auth.CapWriteFormulas), h.DeleteComponent)
	}
}

// ListFormulas handles GET /api/formulas
// @Summary      List formulas
// @Tags         formulas
// @Param        status      query  string  false  "Draft, Pending, Approved or Rejected"
// @Param        created_by  query  int     false  "Creator user id"
// @Param        search      query  string  false  "Matches formula name"
// @Param        sortBy      query  string  false  "formula_name, created_on, total_cost, status or id"
// @Router       /api/formulas [get]
func (h *FormulaHandler) ListFormulas(c *gin.Context) {
	createdBy, err := queryUint(c, "created_by")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := repository.FormulaFilter{
		Status:    c.Query("status"),
		CreatedBy: createdBy,
		Search:    strings.TrimSpace(c.Query("search")),
	}
	p := pagination.Parse(c, service.FormulaSorting)
	formulas, total, err := h.formulaService.List(c.Request.Context(), filter, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, formulas, total, p)
}

func (h *FormulaHandler) GetFormula(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	formula, err := h.formulaService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, formula)
}

// CreateFormula handles POST /api/formulas. The formula and its components
// are inserted together or not at all.
func (h *FormulaHandler) CreateFormula(c *gin.Context) {
	var req service.CreateFormulaRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	formula, err := h.formulaService.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, formula, "Formula created")
}

func (h *FormulaHandler) UpdateFormula(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.UpdateFormulaRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	formula, err := h.formulaService.Update(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, formula, "Formula updated")
}

func (h *FormulaHandler) DeleteFormula(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.formulaService.Delete(c.Request.Context(), middleware.CurrentPrincipal(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, nil, "Formula deleted")
}

func (h *FormulaHandler) ApproveFormula(c *gin.Context) {
	decideEntity(c, h.base, h.formulaService.Approve, "Formula approved")
}

func (h *FormulaHandler) RejectFormula(c *gin.Context) {
	decideEntity(c, h.base, h.formulaService.Reject, "Formula rejected")
}

// --- Components ---

func (h *FormulaHandler) ListComponents(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	components, err := h.formulaService.ListComponents(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, components)
}

func (h *FormulaHandler) AddComponent(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.ComponentInput
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	component, err := h.formulaService.AddComponent(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, component, "Component added")
}

func (h *FormulaHandler) UpdateComponent(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	componentID, err := parseID(c, "componentId")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.UpdateComponentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	component, err := h.formulaService.UpdateComponent(c.Request.Context(), middleware.CurrentPrincipal(c), id, componentID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, component, "Component updated")
}

func (h *FormulaHandler) DeleteComponent(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	componentID, err := parseID(c, "componentId")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.formulaService.DeleteComponent(c.Request.Context(), middleware.CurrentPrincipal(c), id, componentID); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, nil, "Component deleted")
}
