package storefront

import "time"

// Order statuses mirroring the storefront's order lifecycle.
const (
	StatusPending    = "pending"
	StatusOnHold     = "on-hold"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusFailed     = "failed"
)

// Order captures the subset of storefront order data the gateway touches.
type Order struct {
	ID            string
	OrderKey      string
	UserID        string
	Status        string
	Currency      string
	Total         float64
	PaymentMethod string

	// Escrow metadata attached by the gateway, each set exactly once.
	TransactionID *string
	DepositID     *string

	Items     []LineItem
	CreatedAt time.Time
}

// LineItem is one billable line on an order, tagged with its owning vendor.
type LineItem struct {
	ID       int64
	OrderID  string
	Name     string
	VendorID string
	Total    float64
}
