package http

import (
	"net/http"

	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
)

type VerificationHandler struct {
	service *services.VerificationService
}

func NewVerificationHandler(s *services.VerificationService) *VerificationHandler {
	return &VerificationHandler{service: s}
}

func (h *VerificationHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/verifications", h.List)
	r.GET("/verifications/:orderId", h.Get)
	r.POST("/verifications/:orderId/approve", h.Approve)
	r.POST("/verifications/:orderId/reject", h.Reject)
}

func (h *VerificationHandler) List(c *gin.Context) {
	entries, err := h.service.ListByStatus(c.Request.Context(), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *VerificationHandler) Get(c *gin.Context) {
	v, err := h.service.Get(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Approve and Reject accept an empty body.

func (h *VerificationHandler) Approve(c *gin.Context) {
	var req ApproveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	v, err := h.service.Approve(c.Request.Context(), c.Param("orderId"), req.ApprovedBy)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VerificationHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	v, err := h.service.Reject(c.Request.Context(), c.Param("orderId"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
