package http

import (
	"net/http"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(s *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: s}
}

func (h *NotificationHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/notifications", h.Send)
	r.GET("/notifications/:id", h.Get)
	r.GET("/notifications/order/:orderId", h.ListByOrder)
}

func (h *NotificationHandler) Send(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ch, err := domain.ParseChannel(req.Channel)
	if err != nil {
		writeError(c, err)
		return
	}
	immediate := req.Immediate == nil || *req.Immediate

	n, err := h.service.Send(c.Request.Context(), services.SendInput{
		OrderID:   req.OrderID,
		Recipient: req.Recipient,
		Channel:   ch,
		Body:      req.Body,
		Immediate: immediate,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (h *NotificationHandler) Get(c *gin.Context) {
	n, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *NotificationHandler) ListByOrder(c *gin.Context) {
	ns, err := h.service.ListByOrder(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ns)
}
