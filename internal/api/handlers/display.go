package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/tickerwall/internal/display"
)

// DisplaySource is the running mode cycle.
type DisplaySource interface {
	Snapshot() display.ModeCycleSnapshot
}

// DisplayHandler serves the current display state to the renderer.
type DisplayHandler struct {
	display DisplaySource
}

// NewDisplayHandler creates a display handler.
func NewDisplayHandler(source DisplaySource) *DisplayHandler {
	return &DisplayHandler{display: source}
}

// GetDisplay returns the mode cycle snapshot, including the active mode's
// carousel or board state.
func (h *DisplayHandler) GetDisplay(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.display.Snapshot(),
	})
}
