package handler

import (
	"net/http"

	"chemformula/internal/auth"
	"chemformula/internal/middleware"
	"chemformula/internal/repository"
	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	base
	approvalService service.ApprovalService
}

func NewApprovalHandler(approvalService service.ApprovalService, log *logger.Logger) *ApprovalHandler {
	return &ApprovalHandler{base: base{log: log}, approvalService: approvalService}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	approvals := router.Group("/api/approvals", g.Auth)
	{
		approvals.GET("", h.ListApprovals)
		approvals.GET("/stats/pending", h.PendingStats)
		approvals.GET("/:id", h.GetApproval)
		approvals.POST("", g.Require(auth.CapApprove), h.CreateApproval)
		approvals.PUT("/:id", g.Require(auth.CapApprove), h.UpdateApproval)
		approvals.DELETE("/:id", g.Require(auth.CapApprove), h.DeleteApproval)
	}
}

// ListApprovals returns approvals, optionally filtered by entity, decision
// and approver
func (h *ApprovalHandler) ListApprovals(c *gin.Context) {
	entityID, err := queryUint(c, "entity_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	approverID, err := queryUint(c, "approver_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := repository.ApprovalFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   entityID,
		Decision:   c.Query("decision"),
		ApproverID: approverID,
	}

	p := pagination.Parse(c, service.ApprovalSorting)
	approvals, total, err := h.approvalService.List(c.Request.Context(), filter, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, approvals, total, p)
}

func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	approval, err := h.approvalService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, approval)
}

func (h *ApprovalHandler) CreateApproval(c *gin.Context) {
	var req service.CreateApprovalRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	approval, err := h.approvalService.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, approval, "Approval created")
}

// UpdateApproval changes decision, comments or approver. Deciding a Pending
// row also updates the entity it points at.
func (h *ApprovalHandler) UpdateApproval(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.UpdateApprovalRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	approval, err := h.approvalService.Update(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, approval, "Approval updated")
}

func (h *ApprovalHandler) DeleteApproval(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.approvalService.Delete(c.Request.Context(), middleware.CurrentPrincipal(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, nil, "Approval deleted")
}

func (h *ApprovalHandler) PendingStats(c *gin.Context) {
	stats, err := h.approvalService.PendingStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, stats)
}
