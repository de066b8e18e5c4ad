package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/hybrid-auth/internal/dto"
	"github.com/prperemyshlev/hybrid-auth/internal/reconcile"
)

// SyncController is the part of the sync coordinator exposed over HTTP
type SyncController interface {
	Status(ctx context.Context) reconcile.Status
	ReconcileAll(ctx context.Context) bool
	Reset() error
}

// SyncHandler reports and triggers reconciliation
type SyncHandler struct {
	sync SyncController
}

func NewSyncHandler(sync SyncController) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Status reports availability and the ledger summary
// @Summary Sync status
// @Tags sync
// @Produce json
// @Success 200 {object} reconcile.Status
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status(c.Request.Context()))
}

// Trigger runs a reconciliation pass now
// @Summary Trigger reconciliation
// @Tags sync
// @Produce json
// @Success 200 {object} dto.SyncResponse
// @Router /sync [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	c.JSON(http.StatusOK, dto.SyncResponse{
		Completed: h.sync.ReconcileAll(c.Request.Context()),
	})
}

// Reset clears the sync ledger so every local record is pushed again
// @Summary Clear the sync ledger
// @Tags admin
// @Security AdminToken
// @Produce json
// @Success 200 {object} dto.SuccessResponse
// @Router /admin/sync/reset [post]
func (h *SyncHandler) Reset(c *gin.Context) {
	if err := h.sync.Reset(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse{
		Message: "Sync ledger cleared",
	})
}
