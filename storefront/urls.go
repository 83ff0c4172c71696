package storefront

import (
	"fmt"
	"strings"
)

// URLs builds the buyer-facing permalinks the gateway redirects to. The
// storefront owns these pages; only their addresses are modelled here.
type URLs struct {
	base string
}

func NewURLs(siteURL string) URLs {
	return URLs{base: strings.TrimRight(siteURL, "/")}
}

// ViewOrder is the buyer's order-detail page.
func (u URLs) ViewOrder(orderID string) string {
	return fmt.Sprintf("%s/my-account/view-order/%s", u.base, orderID)
}

// OrdersList is the buyer's order history page.
func (u URLs) OrdersList() string {
	return u.base + "/my-account/orders"
}

// CheckoutPayment is the pay-for-order page used when no deposit instrument
// applies.
func (u URLs) CheckoutPayment(orderID, orderKey string) string {
	return fmt.Sprintf("%s/checkout/order-pay/%s?pay_for_order=true&key=%s", u.base, orderID, orderKey)
}
