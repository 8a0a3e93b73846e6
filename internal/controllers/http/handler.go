package http

import (
	"errors"
	"net/http"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/infra"
	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar is implemented by every service handler.
type RouteRegistrar interface {
	RegisterRoutes(r *gin.Engine)
}

// NewRouter builds the engine for one service with its health endpoint.
func NewRouter(service string, handlers ...RouteRegistrar) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": service})
	})
	for _, h := range handlers {
		h.RegisterRoutes(r)
	}
	return r
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidProduct),
		errors.Is(err, domain.ErrInvalidRecipient):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrDuplicate),
		errors.Is(err, domain.ErrOrderNotApproved),
		errors.Is(err, domain.ErrStockNotReserved),
		errors.Is(err, domain.ErrOrderReleased),
		errors.Is(err, services.ErrOrderNotYetApproved):
		return http.StatusConflict
	case errors.Is(err, infra.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
