// Package allocation turns a storefront order into the escrow parties and
// billable allocation submitted at transaction creation.
package allocation

import (
	"fmt"
	"strings"

	"escrowgate/storefront"
	"escrowgate/tradesafe"
)

// Policy defaults for delivery and inspection windows.
const (
	DefaultDaysToDeliver = 14
	DefaultDaysToInspect = 7
)

// Builder computes parties and allocations for checkout.
type Builder struct {
	splitEnabled  bool
	daysToDeliver int
	daysToInspect int
	formatPrice   func(float64) string
}

func NewBuilder(splitEnabled bool) *Builder {
	return &Builder{
		splitEnabled:  splitEnabled,
		daysToDeliver: DefaultDaysToDeliver,
		daysToInspect: DefaultDaysToInspect,
		formatPrice:   func(v float64) string { return fmt.Sprintf("R%.2f", v) },
	}
}

// WithPriceFormatter overrides how line subtotals are rendered in the
// allocation description.
func (b *Builder) WithPriceFormatter(format func(float64) string) *Builder {
	b.formatPrice = format
	return b
}

// Input carries everything Build needs from the order and its participants.
type Input struct {
	OrderID     string
	OrderTotal  float64
	Items       []storefront.LineItem
	BuyerToken  string
	SellerToken string
	// VendorTokens maps a vendor id to its escrow token. Only consulted when
	// fee splitting is enabled.
	VendorTokens map[string]string
}

// Result is the computed transaction breakdown.
type Result struct {
	Allocation tradesafe.Allocation
	Parties    []tradesafe.Party
	// VendorFees exposes the per-vendor sums so callers can compare them to
	// the allocation value. The two are not asserted to reconcile: the
	// allocation carries the order total (which may include order-level
	// amounts not attributed to any vendor line).
	VendorFees map[string]float64
}

// Build folds the order's line items into a single allocation valued at the
// order total, and emits one BUYER, one SELLER, and — when splitting is
// enabled — one BENEFICIARY_MERCHANT per distinct vendor in first-seen order.
func (b *Builder) Build(in Input) Result {
	descriptions := make([]string, 0, len(in.Items))
	vendorFees := make(map[string]float64)
	var vendorOrder []string

	for _, item := range in.Items {
		if b.splitEnabled {
			if _, seen := vendorFees[item.VendorID]; !seen {
				vendorOrder = append(vendorOrder, item.VendorID)
			}
			vendorFees[item.VendorID] += item.Total
		}

		descriptions = append(descriptions, item.Name+": "+b.formatPrice(item.Total))
	}

	alloc := tradesafe.Allocation{
		Title:         "Order " + in.OrderID,
		Description:   StripTags(strings.Join(descriptions, ",")),
		Value:         in.OrderTotal,
		DaysToDeliver: b.daysToDeliver,
		DaysToInspect: b.daysToInspect,
	}

	parties := make([]tradesafe.Party, 0, 2+len(vendorOrder))
	parties = append(parties,
		tradesafe.Party{Role: tradesafe.RoleBuyer, Token: in.BuyerToken},
		tradesafe.Party{Role: tradesafe.RoleSeller, Token: in.SellerToken},
	)

	for _, vendorID := range vendorOrder {
		parties = append(parties, tradesafe.Party{
			Role:          tradesafe.RoleBeneficiaryMerchant,
			Token:         in.VendorTokens[vendorID],
			Fee:           vendorFees[vendorID],
			FeeType:       tradesafe.FeeTypeFlat,
			FeeAllocation: tradesafe.FeeAllocationSeller,
		})
	}

	return Result{
		Allocation: alloc,
		Parties:    parties,
		VendorFees: vendorFees,
	}
}

// StripTags removes HTML tags from item names and formatted prices before
// they are sent to the escrow service.
func StripTags(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))

	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
