package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"teamspace/internal/app"
	"teamspace/internal/transport/http/middleware"
	"teamspace/internal/transport/http/response"
)

type WorkspaceHandler struct {
	workspaceService *app.WorkspaceService
}

type CreateWorkspaceRequest struct {
	Name string `json:"name" binding:"required,max=128"`
}

type AddMemberRequest struct {
	UserID uint `json:"user_id" binding:"required,gt=0"`
}

func NewWorkspaceHandler(workspaceService *app.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

func (h *WorkspaceHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	workspace, err := h.workspaceService.Create(app.CreateWorkspaceInput{
		OwnerID: userID,
		Name:    req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "create workspace failed")
		}
		return
	}

	response.OK(c, workspace)
}

func (h *WorkspaceHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	workspaces, err := h.workspaceService.ListMine(userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list workspaces failed")
		return
	}

	response.OK(c, workspaces)
}

func (h *WorkspaceHandler) AddMember(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	workspaceID, err := parseUintParam(c, "id")
	if err != nil || workspaceID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace id")
		return
	}

	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	member, err := h.workspaceService.AddMember(c.Request.Context(), userID, workspaceID, req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrNotWorkspaceMember):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		case errors.Is(err, app.ErrAlreadyMember):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "add member failed")
		}
		return
	}

	response.OK(c, member)
}

func (h *WorkspaceHandler) ListMembers(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	workspaceID, err := parseUintParam(c, "id")
	if err != nil || workspaceID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace id")
		return
	}

	members, err := h.workspaceService.ListMembers(c.Request.Context(), userID, workspaceID)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNotWorkspaceMember):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list members failed")
		}
		return
	}

	response.OK(c, members)
}

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	u, err := strconv.ParseUint(c.Param(key), 10, 64)
	return uint(u), err
}
