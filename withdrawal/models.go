package withdrawal

import "time"

// MethodTradeSafe is the marketplace withdraw-method id this reconciler owns.
// Requests for any other method pass through untouched.
const MethodTradeSafe = "tradesafe"

// Withdraw-request statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusCancelled = "cancelled"
)

// Request mirrors the marketplace's withdraw-request rows touched here.
type Request struct {
	ID        string
	UserID    string
	Amount    float64
	Method    string
	Status    string
	CreatedAt time.Time
}
