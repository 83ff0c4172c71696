package gateway

// Gateway identifier and the payment method ids the storefront registers
// for each deposit instrument.
const (
	ID             = "tradesafe"
	MethodManual   = "tradesafe-manual"
	MethodEcentric = "tradesafe-ecentric"
	MethodOzow     = "tradesafe-ozow"
	MethodSnapScan = "tradesafe-snapscan"
)

// Result is returned from a successful ProcessPayment and tells the
// checkout where to send the buyer next.
type Result struct {
	Redirect string
}

// Availability captures the context needed to decide whether the gateway
// is offered at checkout.
type Availability struct {
	Currency string
	UserID   string
	IsAdmin  bool
	// PayingOrderID is set when the buyer is paying an existing order via
	// the order-pay page rather than a fresh checkout.
	PayingOrderID string
}
