package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rabmap/internal/services"
)

type FerryHandler struct {
	ferry *services.FerryService
}

func NewFerryHandler(ferry *services.FerryService) *FerryHandler {
	return &FerryHandler{
		ferry: ferry,
	}
}

// Status handles GET /ferry/status
func (h *FerryHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ferry.Status())
}

type SuspendRequest struct {
	Suspended *bool `json:"suspended" binding:"required"`
}

// SetSuspended handles PUT /ferry/suspended
//
// The administrative override for weather interruptions (Bura). Suspension
// freezes the simulated position until the line resumes.
func (h *FerryHandler) SetSuspended(c *gin.Context) {
	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.ferry.SetSuspended(c.Request.Context(), *req.Suspended)
	c.JSON(http.StatusOK, h.ferry.Status())
}
