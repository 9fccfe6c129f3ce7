package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"teamspace/internal/app"
	"teamspace/internal/transport/http/response"
)

// FileHandler covers the single-request upload path and file browsing.
// Chunked uploads live in UploadHandler.
type FileHandler struct {
	fileService *app.FileService
}

func NewFileHandler(fileService *app.FileService) *FileHandler {
	return &FileHandler{fileService: fileService}
}

func (h *FileHandler) Upload(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	workspaceID, err := strconv.ParseUint(c.PostForm("workspace_id"), 10, 64)
	if err != nil || workspaceID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid workspace_id")
		return
	}

	var folderID *uint
	if raw := c.PostForm("folder_id"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid folder_id")
			return
		}
		id := uint(parsed)
		folderID = &id
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing file")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "unreadable file")
		return
	}
	defer src.Close()

	record, err := h.fileService.Upload(c.Request.Context(), app.SimpleUploadInput{
		UserID:      userID,
		WorkspaceID: uint(workspaceID),
		FolderID:    folderID,
		FileName:    fileHeader.Filename,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        src,
	})
	if err != nil {
		h.writeFileError(c, err, "upload failed")
		return
	}

	response.OK(c, record)
}

func (h *FileHandler) List(c *gin.Context) {
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

	files, err := h.fileService.List(c.Request.Context(), userID, uint(workspaceID))
	if err != nil {
		h.writeFileError(c, err, "list files failed")
		return
	}

	response.OK(c, files)
}

func (h *FileHandler) Download(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	record, body, err := h.fileService.Download(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.writeFileError(c, err, "download failed")
		return
	}
	defer body.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.Name))
	c.Header("Content-Length", strconv.FormatInt(record.Size, 10))
	c.Header("Content-Type", record.MimeType)
	c.Status(http.StatusOK)
	io.Copy(c.Writer, body)
}

func (h *FileHandler) Delete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	if err := h.fileService.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		h.writeFileError(c, err, "delete failed")
		return
	}

	response.OK(c, nil)
}

func (h *FileHandler) writeFileError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrFileTooLarge):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrFileNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
	case errors.Is(err, app.ErrNotWorkspaceMember):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
