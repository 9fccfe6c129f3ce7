package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"teamspace/internal/app"
)

// AdminHandler exposes the manual cleanup trigger. The route sits behind the
// CleanupSecret middleware, not JWT auth.
type AdminHandler struct {
	cleanupService *app.CleanupService
}

func NewAdminHandler(cleanupService *app.CleanupService) *AdminHandler {
	return &AdminHandler{cleanupService: cleanupService}
}

func (h *AdminHandler) Cleanup(c *gin.Context) {
	result := h.cleanupService.Sweep(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"cleaned":   result.Cleaned,
		"errors":    result.Errors,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
