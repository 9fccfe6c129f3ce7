package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"teamspace/internal/app"
	"teamspace/internal/transport/http/response"
	"teamspace/internal/upload"
)

// UploadHandler exposes the chunked upload pipeline. Error bodies are flat
// {"error": ...} JSON with resume details at the top level so clients can
// retry exactly the missing chunks.
type UploadHandler struct {
	uploadService *app.UploadService
}

type uploadIDRequest struct {
	UploadID string `json:"uploadId" binding:"required"`
}

func NewUploadHandler(uploadService *app.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Chunk accepts one multipart chunk. Fields: chunk (binary), fileName,
// fileId (upload id), chunkIndex, totalChunks, workspaceId.
func (h *UploadHandler) Chunk(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "invalid token payload", nil)
		return
	}

	fileHeader, err := c.FormFile("chunk")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "missing chunk data", nil)
		return
	}

	fileName := c.PostForm("fileName")
	uploadID := c.PostForm("fileId")
	if fileName == "" || uploadID == "" {
		response.Fail(c, http.StatusBadRequest, "fileName and fileId are required", nil)
		return
	}

	chunkIndex, err := strconv.Atoi(c.PostForm("chunkIndex"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid chunkIndex", nil)
		return
	}
	totalChunks, err := strconv.Atoi(c.PostForm("totalChunks"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "invalid totalChunks", nil)
		return
	}
	workspaceID, err := strconv.ParseUint(c.PostForm("workspaceId"), 10, 64)
	if err != nil || workspaceID == 0 {
		response.Fail(c, http.StatusBadRequest, "invalid workspaceId", nil)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "unreadable chunk data", nil)
		return
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "unreadable chunk data", nil)
		return
	}

	result, err := h.uploadService.IngestChunk(c.Request.Context(), app.IngestChunkInput{
		UserID:      userID,
		WorkspaceID: uint(workspaceID),
		UploadID:    uploadID,
		FileName:    fileName,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		ChunkIndex:  chunkIndex,
		TotalChunks: totalChunks,
		Data:        data,
	})
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Complete assembles the chunks and returns the persisted file summary.
func (h *UploadHandler) Complete(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "invalid token payload", nil)
		return
	}

	var req uploadIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "uploadId is required", nil)
		return
	}

	summary, err := h.uploadService.Complete(c.Request.Context(), userID, req.UploadID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Status reports chunk progress for an in-flight session.
func (h *UploadHandler) Status(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "invalid token payload", nil)
		return
	}

	var req uploadIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "uploadId is required", nil)
		return
	}

	status, err := h.uploadService.Status(userID, req.UploadID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *UploadHandler) writeUploadError(c *gin.Context, err error) {
	var incomplete *app.IncompleteUploadError
	switch {
	case errors.As(err, &incomplete):
		response.Fail(c, http.StatusBadRequest, "Upload incomplete", gin.H{
			"missingChunks": incomplete.Missing,
			"received":      incomplete.Received,
			"total":         incomplete.Total,
		})
	case errors.Is(err, upload.ErrSessionNotFound):
		response.Fail(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, app.ErrNotWorkspaceMember), errors.Is(err, app.ErrNotUploadOwner):
		response.Fail(c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, app.ErrFileTooLarge),
		errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, upload.ErrChunkIndexOutOfRange):
		response.Fail(c, http.StatusBadRequest, err.Error(), nil)
	default:
		response.Fail(c, http.StatusInternalServerError, "upload operation failed", nil)
	}
}
