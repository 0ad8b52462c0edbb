package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/facepos/internal/session"
	"github.com/your-org/facepos/pkg/dto"
)

type ScanHandler struct {
	manager *session.Manager
}

func NewScanHandler(manager *session.Manager) *ScanHandler {
	return &ScanHandler{manager: manager}
}

// Start launches a capture session. Progress streams over the WebSocket
// hub; the response only hands back the scan id to subscribe with.
func (h *ScanHandler) Start(c *gin.Context) {
	var req dto.StartScanRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.manager.Start(c.Request.Context(), req.Policy)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"scan_id": id, "policy": req.Policy})
}

// Cancel stops a running scan. Cancelling an unknown or finished scan
// succeeds quietly.
func (h *ScanHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan id"})
		return
	}

	h.manager.Cancel(id)
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (h *ScanHandler) Active(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"active": h.manager.ActiveCount()})
}
