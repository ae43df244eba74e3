package handler

import (
	"errors"
	"net/http"
	"strings"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/middleware"
	"chemformula/internal/repository"
	"chemformula/internal/service"
	"chemformula/pkg/filemeta"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for form fields and boundaries on top
// of the file size limit.
const multipartOverhead = 1 << 20

type ResourceHandler struct {
	base
	resourceService service.ResourceService
	maxBytes        int64
}

func NewResourceHandler(resourceService service.ResourceService, maxBytes int64, log *logger.Logger) *ResourceHandler {
	return &ResourceHandler{
		base:            base{log: log},
		resourceService: resourceService,
		maxBytes:        maxBytes,
	}
}

func (h *ResourceHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	resources := router.Group("/api/resources", g.Auth)
	{
		resources.GET("", h.ListResources)
		resources.GET("/pending", g.Require(auth.CapApprove), h.ListPending)
		resources.POST("", g.Require(auth.CapUploadResources), h.CreateResource)
		resources.POST("/upload", g.Require(auth.CapUploadResources), h.UploadResource)
		resources.POST("/reconcile", g.Require(auth.CapReconcile), h.Reconcile)
		resources.GET("/:id", h.GetResource)
		resources.PUT("/:id", g.Require(auth.CapUploadResources), h.UpdateResource)
		resources.DELETE("/:id", g.Require(auth.CapUploadResources), h.DeleteResource)
		resources.GET("/:id/download", h.DownloadResource)
		resources.POST("/:id/approve", g.Require(auth.CapApprove), h.ApproveResource)
		resources.POST("/:id/reject", g.Require(auth.CapApprove), h.RejectResource)
	}
}

// ListResources handles GET /api/resources
// @Summary      List resources
// @Tags         resources
// @Param        category         query  string  false  "formulas, quotes, knowledge or other"
// @Param        approval_status  query  string  false  "Pending, Approved or Rejected"
// @Param        uploaded_by      query  int     false  "Uploader user id"
// @Param        search           query  string  false  "Matches file name and description"
// @Router       /api/resources [get]
func (h *ResourceHandler) ListResources(c *gin.Context) {
	uploadedBy, err := queryUint(c, "uploaded_by")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := repository.ResourceFilter{
		ApprovalStatus: c.Query("approval_status"),
		UploadedBy:     uploadedBy,
		Search:         strings.TrimSpace(c.Query("search")),
	}
	if category := c.Query("category"); category != "" {
		filter.Category = filemeta.ParseCategory(category)
	}

	p := pagination.Parse(c, service.ResourceSorting)
	resources, total, err := h.resourceService.List(c.Request.Context(), filter, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, resources, total, p)
}

func (h *ResourceHandler) ListPending(c *gin.Context) {
	p := pagination.Parse(c, service.ResourceSorting)
	resources, total, err := h.resourceService.ListPending(c.Request.Context(), p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, resources, total, p)
}

func (h *ResourceHandler) GetResource(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	resource, err := h.resourceService.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, resource)
}

func (h *ResourceHandler) CreateResource(c *gin.Context) {
	var req service.CreateResourceRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	resource, err := h.resourceService.Create(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, resource, "Resource created")
}

// UploadResource handles POST /api/resources/upload
// @Summary      Upload a file
// @Tags         resources
// @Accept       multipart/form-data
// @Param        file         formData  file    true   "File to upload"
// @Param        category     formData  string  false  "Storage bucket, defaults to other"
// @Param        description  formData  string  false  "Free text"
// @Router       /api/resources/upload [post]
func (h *ResourceHandler) UploadResource(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(c, apperr.Validation("file exceeds the maximum size of %s", filemeta.FormatFileSize(h.maxBytes)))
			return
		}
		h.fail(c, apperr.Validation("file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()

	in := service.UploadInput{
		FileName: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Size:     fileHeader.Size,
		Content:  file,
		Category: c.PostForm("category"),
	}
	if description, ok := c.GetPostForm("description"); ok && description != "" {
		in.Description = &description
	}

	resource, err := h.resourceService.Upload(c.Request.Context(), middleware.CurrentPrincipal(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, resource, "File uploaded")
}

func (h *ResourceHandler) UpdateResource(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.UpdateResourceRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	resource, err := h.resourceService.Update(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, resource, "Resource updated")
}

func (h *ResourceHandler) DeleteResource(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.resourceService.Delete(c.Request.Context(), middleware.CurrentPrincipal(c), id); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, nil, "Resource deleted")
}

func (h *ResourceHandler) DownloadResource(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	file, err := h.resourceService.Download(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if file.MimeType != "" {
		c.Header("Content-Type", file.MimeType)
	}
	c.FileAttachment(file.Path, file.FileName)
}

func (h *ResourceHandler) ApproveResource(c *gin.Context) {
	decideEntity(c, h.base, h.resourceService.Approve, "Resource approved")
}

func (h *ResourceHandler) RejectResource(c *gin.Context) {
	decideEntity(c, h.base, h.resourceService.Reject, "Resource rejected")
}

func (h *ResourceHandler) Reconcile(c *gin.Context) {
	report, err := h.resourceService.Reconcile(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, report)
}
