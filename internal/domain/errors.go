package domain

import "errors"

// Business rule violations. Message handlers acknowledge these after the
// negative outcome has been recorded; they are never retried.
var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidStatus     = errors.New("unknown status")
	ErrInvalidOrder      = errors.New("order must contain at least one item")
	ErrOrderNotApproved  = errors.New("order has not been approved")
	ErrDuplicate         = errors.New("resource already exists")
	ErrInvalidProduct    = errors.New("product requires a name and a non-negative price")
	ErrInvalidRecipient  = errors.New("notification has no recipient")
	ErrOrderReleased     = errors.New("order stock already released")
	ErrStockNotReserved  = errors.New("stock reservation not confirmed yet")
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrVerificationNotFound = errors.New("verification entry not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

var businessErrors = []error{
	ErrInsufficientStock,
	ErrInvalidQuantity,
	ErrProductNotFound,
	ErrInvalidTransition,
	ErrInvalidStatus,
	ErrInvalidOrder,
	ErrOrderNotApproved,
	ErrDuplicate,
	ErrInvalidProduct,
	ErrInvalidRecipient,
	ErrOrderReleased,
	ErrStockNotReserved,
	ErrOrderNotFound,
	ErrVerificationNotFound,
	ErrInvoiceNotFound,
	ErrNotificationNotFound,
}

// IsBusiness reports whether err is a terminal rule violation rather than a
// transient infrastructure failure.
func IsBusiness(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrVerificationNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrProductNotFound)
}
