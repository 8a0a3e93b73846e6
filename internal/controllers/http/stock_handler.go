package http

import (
	"errors"
	"net/http"
	"strconv"

	"order-fulfillment/internal/domain"
	"order-fulfillment/internal/services"

	"github.com/gin-gonic/gin"
)

type StockHandler struct {
	service *services.StockService
}

func NewStockHandler(s *services.StockService) *StockHandler {
	return &StockHandler{service: s}
}

func (h *StockHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/products", h.ListProducts)
	r.POST("/products", h.CreateProduct)
	r.GET("/products/:id", h.GetProduct)
	r.POST("/products/:id/restock", h.Restock)
	r.POST("/stock/deduct", h.Deduct)
	r.GET("/stock/transactions", h.ListTransactions)
}

func productID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, errors.New("product id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func (h *StockHandler) ListProducts(c *gin.Context) {
	products, err := h.service.ListProducts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *StockHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.CreateProduct(c.Request.Context(), req.Name, req.Price, req.Stock)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *StockHandler) GetProduct(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	p, err := h.service.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *StockHandler) Restock(c *gin.Context) {
	id, ok := productID(c)
	if !ok {
		return
	}
	var req RestockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.service.Restock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *StockHandler) Deduct(c *gin.Context) {
	var req DeductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	lines := make([]domain.StockLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, domain.StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	res, err := h.service.ConfirmOrDeduct(c.Request.Context(), req.OrderID, lines)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *StockHandler) ListTransactions(c *gin.Context) {
	txs, err := h.service.ListTransactions(c.Request.Context(), c.Query("orderId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}
