package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"chemformula/internal/apperr"
	"chemformula/internal/auth"
	"chemformula/internal/middleware"
	"chemformula/internal/service"
	"chemformula/pkg/logger"
	"chemformula/pkg/pagination"
	"chemformula/pkg/response"

	"github.com/gin-gonic/gin"
)

// Guard wires the authentication and capability middleware into route
// registration.
type Guard struct {
	Auth   gin.HandlerFunc
	Policy *auth.Policy
}

func (g Guard) Require(caps ...auth.Capability) gin.HandlerFunc {
	return middleware.RequireCapability(g.Policy, caps...)
}

func parseID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("invalid %s: %q", name, raw)
	}
	return uint(id), nil
}

func queryUint(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid %s: %q", name, raw)
	}
	return uint(v), nil
}

func bindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("Invalid request payload: %v", err)
	}
	return nil
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("Invalid request payload: %v", err)
	}
	return nil
}

type decisionBody struct {
	ApproverID json.Number `json:"approver_id"`
	Comments   *string     `json:"comments"`
}

// parseDecision reads the optional approve/reject body. A non-numeric
// approver_id is rejected before anything is touched.
func parseDecision(c *gin.Context) (service.DecisionRequest, error) {
	var body decisionBody
	if err := bindOptionalJSON(c, &body); err != nil {
		return service.DecisionRequest{}, err
	}
	in := service.DecisionRequest{Comments: body.Comments}
	if body.ApproverID != "" {
		id, err := strconv.ParseUint(body.ApproverID.String(), 10, 64)
		if err != nil || id == 0 {
			return service.DecisionRequest{}, apperr.Validation("approver_id must be a positive integer")
		}
		v := uint(id)
		in.ApproverID = &v
	}
	return in, nil
}

func writePage[T any](c *gin.Context, data []T, total int64, p pagination.Params) {
	response.OK(c, http.StatusOK, pagination.NewPage(data, total, p))
}

// base carries what every handler needs to report failures.
type base struct {
	log *logger.Logger
}

func (b base) fail(c *gin.Context, err error) {
	response.Fail(c, b.log, err)
}

// decideEntity serves POST /:id/approve and /:id/reject for any approvable
// entity.
func decideEntity[T any](
	c *gin.Context,
	b base,
	fn func(ctx context.Context, actor *auth.Principal, id uint, in service.DecisionRequest) (*T, error),
	message string,
) {
	id, err := parseID(c, "id")
	if err != nil {
		b.fail(c, err)
		return
	}
	in, err := parseDecision(c)
	if err != nil {
		b.fail(c, err)
		return
	}
	result, err := fn(c.Request.Context(), middleware.CurrentPrincipal(c), id, in)
	if err != nil {
		b.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, result, message)
}
