package http

import "github.com/shopspring/decimal"

type OrderItemRequest struct {
	ProductID uint64 `json:"productId" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
}

type CreateOrderRequest struct {
	CustomerName  string             `json:"customerName" binding:"required"`
	CustomerEmail string             `json:"customerEmail" binding:"required,email"`
	CustomerPhone string             `json:"customerPhone"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type CreateOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  string `json:"total"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type CreateProductRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock" binding:"min=0"`
}

type RestockRequest struct {
	Quantity int64 `json:"quantity" binding:"required,min=1"`
}

type DeductRequest struct {
	OrderID string             `json:"orderId"`
	Items   []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type ApproveRequest struct {
	ApprovedBy string `json:"approvedBy"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type CreateInvoiceRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type SendNotificationRequest struct {
	OrderID   string `json:"orderId"`
	Recipient string `json:"recipient" binding:"required"`
	Channel   string `json:"channel" binding:"required"`
	Body      string `json:"body" binding:"required"`
	// Immediate defaults to true.
	Immediate *bool `json:"immediate"`
}
