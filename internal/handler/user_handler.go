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

type UserHandler struct {
	base
	userService service.UserService
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{base: base{log: log}, userService: userService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup, g Guard) {
	users := router.Group("/api/users", g.Auth)
	{
		users.GET("/me", h.GetMe)
		users.GET("", g.Require(auth.CapManageUsers), h.ListUsers)
		users.GET("/:id", g.Require(auth.CapManageUsers), h.GetUserByID)
		users.POST("", g.Require(auth.CapManageUsers), h.CreateUser)
		users.PUT("/:id", g.Require(auth.CapManageUsers), h.UpdateUser)
		users.DELETE("/:id", g.Require(auth.CapManageUsers), h.DeleteUser)
	}
}

// GetMe returns the caller's account with the capabilities of its role
// @Summary      Current user
// @Tags         users
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=service.UserResponse}
// @Router       /api/users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.Me(c.Request.Context(), middleware.CurrentPrincipal(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user)
}

// CreateUser handles POST /api/users
// @Summary      Create a new user
// @Description  Registers a local account; auth_id links it to an identity provider subject
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateUserRequest  true  "Create User Payload"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req service.CreateUserRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	user, err := h.userService.CreateUser(c.Request.Context(), middleware.CurrentPrincipal(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, user, "User created")
}

// ListUsers handles GET /api/users
// @Summary      List users
// @Tags         users
// @Security     BearerAuth
// @Param        page    query  int     false  "Page number"
// @Param        limit   query  int     false  "Page size (max 100)"
// @Param        status  query  string  false  "Active or Inactive"
// @Param        role_id query  int     false  "Role id"
// @Param        search  query  string  false  "Matches username and email"
// @Router       /api/users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	roleID, err := queryUint(c, "role_id")
	if err != nil {
		h.fail(c, err)
		return
	}
	filter := repository.UserFilter{
		Status: c.Query("status"),
		RoleID: roleID,
		Search: strings.TrimSpace(c.Query("search")),
	}
	p := pagination.Parse(c, service.UserSorting)
	users, total, err := h.userService.ListUsers(c.Request.Context(), filter, p)
	if err != nil {
		h.fail(c, err)
		return
	}
	writePage(c, users, total, p)
}

func (h *UserHandler) GetUserByID(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	user, err := h.userService.GetUserByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req service.UpdateUserRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	user, err := h.userService.UpdateUser(c.Request.Context(), middleware.CurrentPrincipal(c), id, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, user, "User updated")
}

// DeleteUser deactivates users still referenced by formulas, quotes,
// resources or approvals, and deletes the rest.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	id, err := parseID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	deactivated, err := h.userService.DeleteUser(c.Request.Context(), middleware.CurrentPrincipal(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if deactivated {
		response.OK(c, http.StatusOK, gin.H{"id": id, "status": "Inactive"},
			"User has dependent records and was deactivated instead of deleted")
		return
	}
	response.OK(c, http.StatusOK, nil, "User deleted")
}
