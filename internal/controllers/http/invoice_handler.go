package http

import (
	"net/http"

	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	service *services.InvoiceService
}

func NewInvoiceHandler(s *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{service: s}
}

func (h *InvoiceHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/invoices", h.Create)
	r.GET("/invoices/:id", h.GetByID)
	r.GET("/invoices/order/:orderId", h.GetByOrderID)
	r.POST("/invoices/:id/pay", h.MarkPaid)
	r.POST("/invoices/:id/cancel", h.Cancel)
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	inv, err := h.service.CreateInvoice(c.Request.Context(), req.OrderID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

func (h *InvoiceHandler) GetByID(c *gin.Context) {
	inv, err := h.service.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) GetByOrderID(c *gin.Context) {
	inv, err := h.service.GetByOrderID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	inv, err := h.service.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (h *InvoiceHandler) Cancel(c *gin.Context) {
	inv, err := h.service.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
