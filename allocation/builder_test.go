package allocation

import (
	"testing"

	"escrowgate/storefront"
	"escrowgate/tradesafe"
)

func TestBuildWithoutSplitting(t *testing.T) {
	b := NewBuilder(false)

	result := b.Build(Input{
		OrderID:     "1001",
		OrderTotal:  150,
		BuyerToken:  "buyer-token",
		SellerToken: "seller-token",
		Items: []storefront.LineItem{
			{Name: "Widget", VendorID: "vendor-a", Total: 100},
			{Name: "Gadget", VendorID: "vendor-b", Total: 50},
		},
	})

	if len(result.Parties) != 2 {
		t.Fatalf("expected 2 parties, got %d", len(result.Parties))
	}
	if result.Parties[0].Role != tradesafe.RoleBuyer || result.Parties[0].Token != "buyer-token" {
		t.Errorf("unexpected buyer party: %+v", result.Parties[0])
	}
	if result.Parties[1].Role != tradesafe.RoleSeller || result.Parties[1].Token != "seller-token" {
		t.Errorf("unexpected seller party: %+v", result.Parties[1])
	}
	if len(result.VendorFees) != 0 {
		t.Errorf("expected no vendor fees when splitting disabled, got %v", result.VendorFees)
	}
}

func TestBuildWithSplitting(t *testing.T) {
	b := NewBuilder(true)

	result := b.Build(Input{
		OrderID:     "1002",
		OrderTotal:  150,
		BuyerToken:  "buyer-token",
		SellerToken: "seller-token",
		Items: []storefront.LineItem{
			{Name: "Widget", VendorID: "vendor-a", Total: 60},
			{Name: "Gadget", VendorID: "vendor-b", Total: 50},
			{Name: "Sprocket", VendorID: "vendor-a", Total: 40},
		},
		VendorTokens: map[string]string{
			"vendor-a": "token-a",
			"vendor-b": "token-b",
		},
	})

	if len(result.Parties) != 4 {
		t.Fatalf("expected 4 parties, got %d", len(result.Parties))
	}

	beneficiaries := result.Parties[2:]
	if beneficiaries[0].Token != "token-a" || beneficiaries[0].Fee != 100 {
		t.Errorf("vendor-a beneficiary: got token %q fee %v", beneficiaries[0].Token, beneficiaries[0].Fee)
	}
	if beneficiaries[1].Token != "token-b" || beneficiaries[1].Fee != 50 {
		t.Errorf("vendor-b beneficiary: got token %q fee %v", beneficiaries[1].Token, beneficiaries[1].Fee)
	}
	for _, p := range beneficiaries {
		if p.Role != tradesafe.RoleBeneficiaryMerchant {
			t.Errorf("expected beneficiary role, got %q", p.Role)
		}
		if p.FeeType != tradesafe.FeeTypeFlat || p.FeeAllocation != tradesafe.FeeAllocationSeller {
			t.Errorf("unexpected fee policy on party %+v", p)
		}
	}

	if result.Allocation.Value != 150 {
		t.Errorf("expected allocation value 150, got %v", result.Allocation.Value)
	}
	if result.Allocation.DaysToDeliver != 14 || result.Allocation.DaysToInspect != 7 {
		t.Errorf("unexpected delivery windows: %+v", result.Allocation)
	}
}

func TestBuildDescription(t *testing.T) {
	b := NewBuilder(false)

	result := b.Build(Input{
		OrderID:    "1003",
		OrderTotal: 150,
		Items: []storefront.LineItem{
			{Name: "<b>Widget</b>", VendorID: "vendor-a", Total: 100},
			{Name: "Gadget", VendorID: "vendor-b", Total: 50},
		},
	})

	want := "Widget: R100.00,Gadget: R50.00"
	if result.Allocation.Description != want {
		t.Errorf("description: got %q want %q", result.Allocation.Description, want)
	}
	if result.Allocation.Title != "Order 1003" {
		t.Errorf("title: got %q", result.Allocation.Title)
	}
}

func TestBuildEmptyOrder(t *testing.T) {
	b := NewBuilder(true)

	// The allocation value is the order total directly, not a sum of items,
	// so an itemless order still produces a valid allocation.
	result := b.Build(Input{OrderID: "1004", OrderTotal: 99.5})

	if result.Allocation.Description != "" {
		t.Errorf("expected empty description, got %q", result.Allocation.Description)
	}
	if result.Allocation.Value != 99.5 {
		t.Errorf("expected value 99.5, got %v", result.Allocation.Value)
	}
	if len(result.Parties) != 2 {
		t.Errorf("expected buyer and seller only, got %d parties", len(result.Parties))
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags(`<span class="amount">R100.00</span>`)
	if got != "R100.00" {
		t.Errorf("got %q", got)
	}

	if got := StripTags("plain text"); got != "plain text" {
		t.Errorf("got %q", got)
	}
}
