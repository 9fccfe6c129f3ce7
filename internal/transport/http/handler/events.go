package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"teamspace/internal/app"
	"teamspace/internal/realtime"
	"teamspace/internal/transport/http/response"
)

// EventHandler serves the SSE stream and the event publish endpoint.
type EventHandler struct {
	realtimeService *app.RealtimeService
	heartbeat       time.Duration
}

type PublishEventRequest struct {
	Type         string `json:"type" binding:"required"`
	Data         any    `json:"data"`
	TargetUserID *uint  `json:"targetUserId"`
	WorkspaceID  *uint  `json:"workspaceId"`
}

func NewEventHandler(realtimeService *app.RealtimeService, heartbeat time.Duration) *EventHandler {
	return &EventHandler{realtimeService: realtimeService, heartbeat: heartbeat}
}

// Stream opens a long-lived SSE connection for the authenticated user.
// Opening a second stream for the same user closes the first.
func (h *EventHandler) Stream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "invalid token payload", nil)
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Fail(c, http.StatusInternalServerError, "streaming unsupported", nil)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)

	registry := h.realtimeService.Registry()
	conn := registry.Register(userID)
	defer registry.Unregister(userID, conn)

	writeEventFrame(c, flusher, realtime.Event{
		Type: realtime.EventTypeConnection,
		Data: gin.H{"userId": userID, "connectedAt": time.Now().UTC()},
	})

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-conn.Events():
			if !open {
				// Replaced by a newer stream for the same user.
				return
			}
			if !writeEventFrame(c, flusher, event) {
				return
			}
		case <-heartbeat.C:
			frame := realtime.Event{
				Type: realtime.EventTypeHeartbeat,
				Data: gin.H{"time": time.Now().UTC()},
			}
			if !writeEventFrame(c, flusher, frame) {
				return
			}
		}
	}
}

// Publish accepts an event, audits it, and fans it out to open streams.
func (h *EventHandler) Publish(c *gin.Context) {
	if _, ok := getUserIDFromContext(c); !ok {
		response.Fail(c, http.StatusUnauthorized, "invalid token payload", nil)
		return
	}

	var req PublishEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "type is required", nil)
		return
	}

	eventID, err := h.realtimeService.Publish(c.Request.Context(), app.PublishEventInput{
		Type:         req.Type,
		Data:         req.Data,
		TargetUserID: req.TargetUserID,
		WorkspaceID:  req.WorkspaceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrEventTypeRequired), errors.Is(err, app.ErrInvalidInput):
			response.Fail(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, app.ErrEventEnqueue):
			response.Fail(c, http.StatusServiceUnavailable, err.Error(), nil)
		default:
			response.Fail(c, http.StatusInternalServerError, "event publish failed", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"eventId": eventID,
		"message": "event accepted",
	})
}

// History lists recent audited events for one workspace.
func (h *EventHandler) History(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, "invalid token payload", nil)
		return
	}

	workspaceID, err := strconv.ParseUint(c.Query("workspace_id"), 10, 64)
	if err != nil || workspaceID == 0 {
		response.Fail(c, http.StatusBadRequest, "invalid workspace_id", nil)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	records, err := h.realtimeService.History(c.Request.Context(), userID, uint(workspaceID), limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Fail(c, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, app.ErrNotWorkspaceMember):
			response.Fail(c, http.StatusForbidden, err.Error(), nil)
		default:
			response.Fail(c, http.StatusInternalServerError, "list events failed", nil)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": records})
}

func writeEventFrame(c *gin.Context, flusher http.Flusher, event realtime.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		return true
	}
	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}
