package handler

import (
	"net/http"

	"chemformula/internal/apperr"
	"chemformula/internal/service"
	"chemformula/pkg/filemeta"
	"chemformula/pkg/logger"

	"github.com/gin-gonic/gin"
)

// UploadHandler serves stored files publicly under /uploads.
type UploadHandler struct {
	base
	resourceService service.ResourceService
}

func NewUploadHandler(resourceService service.ResourceService, log *logger.Logger) *UploadHandler {
	return &UploadHandler{base: base{log: log}, resourceService: resourceService}
}

func (h *UploadHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/uploads/:category/:filename", h.Serve)
	router.HEAD("/uploads/:category/:filename", h.Serve)
}

// Serve sends the file when it is in the requested bucket and redirects to
// the bucket it was found in otherwise.
func (h *UploadHandler) Serve(c *gin.Context) {
	category := c.Param("category")
	name := c.Param("filename")

	file, err := h.resourceService.Lookup(category, name)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"success":    false,
				"error":      "File not found",
				"searchedIn": filemeta.Categories,
				"filename":   name,
			})
			return
		}
		h.fail(c, err)
		return
	}
	if file.Category != category {
		c.Redirect(http.StatusFound, filemeta.URLFor(file.Category, file.Name))
		return
	}
	c.File(file.Path)
}
