package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"escrowgate/storefront"
	"escrowgate/tradesafe"
)

func testSettings() Settings {
	return Settings{
		Enabled:          true,
		HasCredentials:   true,
		Currencies:       []string{"ZAR"},
		MarketplaceSplit: true,
		Industry:         "GENERAL_GOODS_SERVICES",
		FeeAllocation:    "SELLER",
	}
}

func newTestService(client tradesafe.Client, store *fakeStore) *Service {
	svc := NewService(client, store, storefront.NewURLs("https://shop.example.com"), testSettings())
	return svc.WithClock(func() time.Time { return time.Unix(1700000000, 0) })
}

func TestProcessPaymentUnconfigured(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(nil, store)

	result, err := svc.ProcessPayment(context.Background(), "1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for unconfigured gateway, got %+v", result)
	}
}

func TestProcessPaymentManualEFT(t *testing.T) {
	store := newFakeStore()
	store.addOrder(storefront.Order{
		ID:            "1001",
		OrderKey:      "wc_order_abc",
		UserID:        "buyer-1",
		Currency:      "ZAR",
		Total:         150,
		PaymentMethod: MethodManual,
		Items: []storefront.LineItem{
			{Name: "Widget", VendorID: "vendor-a", Total: 150},
		},
	})
	client := newFakeClient()
	svc := newTestService(client, store)

	result, err := svc.ProcessPayment(context.Background(), "1001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.deposits[0].instrument != tradesafe.InstrumentEFT {
		t.Errorf("expected EFT deposit, got %q", client.deposits[0].instrument)
	}
	if got := store.orders["1001"].Status; got != storefront.StatusOnHold {
		t.Errorf("expected on-hold status, got %q", got)
	}
	want := "https://shop.example.com/my-account/view-order/1001"
	if result.Redirect != want {
		t.Errorf("redirect: got %q want %q", result.Redirect, want)
	}
	if store.orders["1001"].DepositID == nil {
		t.Error("expected deposit id attached to order")
	}
	if !store.cartEmptied["buyer-1"] {
		t.Error("expected buyer cart to be emptied")
	}
}

func TestProcessPaymentOzow(t *testing.T) {
	store := newFakeStore()
	store.addOrder(storefront.Order{
		ID:            "1002",
		OrderKey:      "wc_order_def",
		UserID:        "buyer-1",
		Currency:      "ZAR",
		Total:         80,
		PaymentMethod: MethodOzow,
		Items: []storefront.LineItem{
			{Name: "Gadget", VendorID: "vendor-a", Total: 80},
		},
	})
	client := newFakeClient()
	svc := newTestService(client, store)

	result, err := svc.ProcessPayment(context.Background(), "1002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if client.deposits[0].instrument != tradesafe.InstrumentOzow {
		t.Errorf("expected OZOW deposit, got %q", client.deposits[0].instrument)
	}
	if result.Redirect != "https://pay.example.com/dep-1" {
		t.Errorf("expected hosted payment link redirect, got %q", result.Redirect)
	}
	if got := store.orders["1002"].Status; got != storefront.StatusPending {
		t.Errorf("expected order to stay pending, got %q", got)
	}
}

func TestProcessPaymentUnknownMethodFallsBack(t *testing.T) {
	store := newFakeStore()
	store.addOrder(storefront.Order{
		ID:            "1003",
		OrderKey:      "wc_order_ghi",
		UserID:        "buyer-1",
		Currency:      "ZAR",
		Total:         10,
		PaymentMethod: "cod",
	})
	client := newFakeClient()
	svc := newTestService(client, store)

	result, err := svc.ProcessPayment(context.Background(), "1003")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(client.deposits) != 0 {
		t.Errorf("expected no deposit for unknown method, got %d", len(client.deposits))
	}
	want := "https://shop.example.com/checkout/order-pay/1003?pay_for_order=true&key=wc_order_ghi"
	if result.Redirect != want {
		t.Errorf("redirect: got %q want %q", result.Redirect, want)
	}
}

func TestProcessPaymentIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addOrder(storefront.Order{
		ID:            "1004",
		OrderKey:      "wc_order_jkl",
		UserID:        "buyer-1",
		Currency:      "ZAR",
		Total:         150,
		PaymentMethod: MethodManual,
		Items: []storefront.LineItem{
			{Name: "Widget", VendorID: "vendor-a", Total: 150},
		},
	})
	client := newFakeClient()
	svc := newTestService(client, store)

	ctx := context.Background()
	if _, err := svc.ProcessPayment(ctx, "1004"); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	if _, err := svc.ProcessPayment(ctx, "1004"); err != nil {
		t.Fatalf("second submission: %v", err)
	}

	if client.createCalls != 1 {
		t.Errorf("expected exactly one transaction creation, got %d", client.createCalls)
	}
	if store.orders["1004"].TransactionID == nil || *store.orders["1004"].TransactionID != "txn-1" {
		t.Errorf("expected txn-1 stored on order, got %v", store.orders["1004"].TransactionID)
	}
}

func TestProcessPaymentConcurrentResubmit(t *testing.T) {
	store := newFakeStore()
	store.addOrder(storefront.Order{
		ID:            "1005",
		OrderKey:      "wc_order_mno",
		UserID:        "buyer-1",
		Currency:      "ZAR",
		Total:         150,
		PaymentMethod: MethodManual,
		Items: []storefront.LineItem{
			{Name: "Widget", VendorID: "vendor-a", Total: 150},
		},
	})
	client := newFakeClient()
	svc := newTestService(client, store)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := svc.ProcessPayment(ctx, "1005")
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent submission failed: %v", err)
	}

	// Both submissions may reach the escrow service, but the order records
	// exactly one transaction id.
	if store.orders["1005"].TransactionID == nil {
		t.Fatal("expected a transaction id on the order")
	}
	if store.attachAttempts["1005"] < 1 {
		t.Error("expected at least one attach attempt")
	}
}

func TestBeneficiaryPartiesSubmitted(t *testing.T) {
	store := newFakeStore()
	store.addOrder(storefront.Order{
		ID:            "1006",
		OrderKey:      "wc_order_pqr",
		UserID:        "buyer-1",
		Currency:      "ZAR",
		Total:         150,
		PaymentMethod: MethodManual,
		Items: []storefront.LineItem{
			{Name: "Widget", VendorID: "vendor-a", Total: 100},
			{Name: "Gadget", VendorID: "vendor-b", Total: 50},
		},
	})
	store.tokens["vendor-a"] = "token-a"
	store.tokens["vendor-b"] = "token-b"
	client := newFakeClient()
	svc := newTestService(client, store)

	if _, err := svc.ProcessPayment(context.Background(), "1006"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	parties := client.lastParties
	if len(parties) != 4 {
		t.Fatalf("expected 4 parties, got %d", len(parties))
	}
	if parties[2].Fee != 100 || parties[3].Fee != 50 {
		t.Errorf("unexpected beneficiary fees: %v, %v", parties[2].Fee, parties[3].Fee)
	}
	if client.lastAllocations[0].Value != 150 {
		t.Errorf("expected allocation value 150, got %v", client.lastAllocations[0].Value)
	}
	if client.lastMeta.Reference != "wc_order_pqr-1700000000" {
		t.Errorf("unexpected reference %q", client.lastMeta.Reference)
	}
}

func TestAvailable(t *testing.T) {
	store := newFakeStore()
	store.tokens["buyer-1"] = "token-1"
	client := newFakeClient()

	cases := []struct {
		name     string
		settings func(Settings) Settings
		avail    Availability
		want     bool
	}{
		{
			name:     "linked buyer with supported currency",
			settings: func(s Settings) Settings { return s },
			avail:    Availability{Currency: "ZAR", UserID: "buyer-1"},
			want:     true,
		},
		{
			name:     "unsupported currency",
			settings: func(s Settings) Settings { return s },
			avail:    Availability{Currency: "USD", UserID: "buyer-1"},
			want:     false,
		},
		{
			name:     "missing credentials",
			settings: func(s Settings) Settings { s.HasCredentials = false; return s },
			avail:    Availability{Currency: "ZAR", UserID: "buyer-1"},
			want:     false,
		},
		{
			name:     "production flag forces off",
			settings: func(s Settings) Settings { s.Production = true; return s },
			avail:    Availability{Currency: "ZAR", UserID: "buyer-1"},
			want:     false,
		},
		{
			name:     "disabled",
			settings: func(s Settings) Settings { s.Enabled = false; return s },
			avail:    Availability{Currency: "ZAR", UserID: "buyer-1"},
			want:     false,
		},
		{
			name:     "unlinked user",
			settings: func(s Settings) Settings { return s },
			avail:    Availability{Currency: "ZAR", UserID: "buyer-2"},
			want:     false,
		},
		{
			name:     "admin bypasses token check",
			settings: func(s Settings) Settings { return s },
			avail:    Availability{Currency: "ZAR", IsAdmin: true},
			want:     true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(client, store, storefront.NewURLs("https://shop.example.com"), tc.settings(testSettings()))
			got, err := svc.Available(context.Background(), tc.avail)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestAvailableOrderPayMethodMismatch(t *testing.T) {
	store := newFakeStore()
	store.tokens["buyer-1"] = "token-1"
	store.addOrder(storefront.Order{ID: "2001", UserID: "buyer-1", PaymentMethod: "payfast"})
	client := newFakeClient()
	svc := NewService(client, store, storefront.NewURLs("https://shop.example.com"), testSettings())

	got, err := svc.Available(context.Background(), Availability{
		Currency:      "ZAR",
		UserID:        "buyer-1",
		PayingOrderID: "2001",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got {
		t.Error("expected gateway unavailable for order assigned to another method")
	}
}

type fakeStore struct {
	mu             sync.Mutex
	orders         map[string]*storefront.Order
	tokens         map[string]string
	cartEmptied    map[string]bool
	attachAttempts map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:         make(map[string]*storefront.Order),
		tokens:         map[string]string{"buyer-1": "buyer-token"},
		cartEmptied:    make(map[string]bool),
		attachAttempts: make(map[string]int),
	}
}

func (f *fakeStore) addOrder(order storefront.Order) {
	f.orders[order.ID] = &order
}

func (f *fakeStore) GetOrder(ctx context.Context, orderID string) (storefront.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return storefront.Order{}, storefront.ErrOrderNotFound
	}
	return *order, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, orderID, status, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return storefront.ErrOrderNotFound
	}
	order.Status = status
	return nil
}

func (f *fakeStore) AttachTransactionID(ctx context.Context, orderID, transactionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachAttempts[orderID]++
	order, ok := f.orders[orderID]
	if !ok {
		return storefront.ErrOrderNotFound
	}
	if order.TransactionID != nil {
		return storefront.ErrMetaAlreadySet
	}
	order.TransactionID = &transactionID
	return nil
}

func (f *fakeStore) AttachDepositID(ctx context.Context, orderID, depositID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.orders[orderID]
	if !ok {
		return storefront.ErrOrderNotFound
	}
	if order.DepositID != nil {
		return storefront.ErrMetaAlreadySet
	}
	order.DepositID = &depositID
	return nil
}

func (f *fakeStore) EmptyCart(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cartEmptied[userID] = true
	return nil
}

func (f *fakeStore) GetUserTokenID(ctx context.Context, userID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID], nil
}

type fakeDeposit struct {
	transactionID string
	instrument    string
}

type fakeClient struct {
	mu              sync.Mutex
	createCalls     int
	deposits        []fakeDeposit
	lastMeta        tradesafe.TransactionMeta
	lastAllocations []tradesafe.Allocation
	lastParties     []tradesafe.Party
}

func newFakeClient() *fakeClient {
	return &fakeClient{}
}

func (f *fakeClient) GetProfile(ctx context.Context) (tradesafe.Profile, error) {
	return tradesafe.Profile{Token: "seller-token"}, nil
}

func (f *fakeClient) CreateTransaction(ctx context.Context, meta tradesafe.TransactionMeta, allocations []tradesafe.Allocation, parties []tradesafe.Party) (tradesafe.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	f.lastMeta = meta
	f.lastAllocations = allocations
	f.lastParties = parties
	return tradesafe.Transaction{ID: fmt.Sprintf("txn-%d", f.createCalls)}, nil
}

func (f *fakeClient) CreateTransactionDeposit(ctx context.Context, transactionID, instrument string, redirects tradesafe.Redirects) (tradesafe.Deposit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deposits = append(f.deposits, fakeDeposit{transactionID: transactionID, instrument: instrument})
	id := fmt.Sprintf("dep-%d", len(f.deposits))
	return tradesafe.Deposit{ID: id, PaymentLink: "https://pay.example.com/" + id}, nil
}

func (f *fakeClient) GetToken(ctx context.Context, tokenID string) (tradesafe.Token, error) {
	return tradesafe.Token{ID: tokenID}, nil
}

func (f *fakeClient) UpdateToken(ctx context.Context, tokenID string, user tradesafe.TokenUser, org *tradesafe.Organization, bank *tradesafe.BankAccount, payoutInterval string) error {
	return nil
}

func (f *fakeClient) GetEnum(ctx context.Context, name string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (f *fakeClient) TokenAccountWithdraw(ctx context.Context, tokenID string, amount float64) (bool, error) {
	return true, nil
}
