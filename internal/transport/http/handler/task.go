package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"teamspace/internal/app"
	"teamspace/internal/transport/http/response"
)

type TaskHandler struct {
	taskService *app.TaskService
}

type CreateTaskRequest struct {
	WorkspaceID uint       `json:"workspace_id" binding:"required,gt=0"`
	Title       string     `json:"title" binding:"required,max=255"`
	Description string     `json:"description"`
	AssigneeID  *uint      `json:"assignee_id"`
	DueDate     *time.Time `json:"due_date"`
}

type UpdateTaskRequest struct {
	Title      *string    `json:"title"`
	Status     *string    `json:"status"`
	AssigneeID *uint      `json:"assignee_id"`
	DueDate    *time.Time `json:"due_date"`
}

type CreateCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func NewTaskHandler(taskService *app.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), app.CreateTaskInput{
		UserID:      userID,
		WorkspaceID: req.WorkspaceID,
		Title:       req.Title,
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		h.writeTaskError(c, err, "create task failed")
		return
	}

	response.OK(c, task)
}

func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	workspaceID, err := strconv.ParseUint(c.Query("workspace_id"), 10, 64)
	if err != nil || workspaceID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace_id")
		return
	}

	tasks, err := h.taskService.List(c.Request.Context(), userID, uint(workspaceID), c.Query("status"))
	if err != nil {
		h.writeTaskError(c, err, "list tasks failed")
		return
	}

	response.OK(c, tasks)
}

func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	taskID, err := parseUintParam(c, "id")
	if err != nil || taskID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid task id")
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), app.UpdateTaskInput{
		UserID:     userID,
		TaskID:     taskID,
		Title:      req.Title,
		Status:     req.Status,
		AssigneeID: req.AssigneeID,
		DueDate:    req.DueDate,
	})
	if err != nil {
		h.writeTaskError(c, err, "update task failed")
		return
	}

	response.OK(c, task)
}

func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	taskID, err := parseUintParam(c, "id")
	if err != nil || taskID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid task id")
		return
	}

	if err := h.taskService.Delete(c.Request.Context(), userID, taskID); err != nil {
		h.writeTaskError(c, err, "delete task failed")
		return
	}

	response.OK(c, nil)
}

func (h *TaskHandler) CreateComment(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	taskID, err := parseUintParam(c, "id")
	if err != nil || taskID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid task id")
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	comment, err := h.taskService.CreateComment(c.Request.Context(), app.CreateCommentInput{
		UserID: userID,
		TaskID: taskID,
		Body:   req.Body,
	})
	if err != nil {
		h.writeTaskError(c, err, "create comment failed")
		return
	}

	response.OK(c, comment)
}

func (h *TaskHandler) ListComments(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	taskID, err := parseUintParam(c, "id")
	if err != nil || taskID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid task id")
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	comments, err := h.taskService.ListComments(c.Request.Context(), userID, taskID, limit)
	if err != nil {
		h.writeTaskError(c, err, "list comments failed")
		return
	}

	response.OK(c, comments)
}

func (h *TaskHandler) writeTaskError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrTaskNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrNotWorkspaceMember):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
