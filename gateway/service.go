package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"escrowgate/allocation"
	"escrowgate/logger"
	"escrowgate/storefront"
	"escrowgate/tradesafe"
)

// OrderStore is the storefront collaborator surface the orchestrator needs.
type OrderStore interface {
	GetOrder(ctx context.Context, orderID string) (storefront.Order, error)
	UpdateStatus(ctx context.Context, orderID, status, note string) error
	AttachTransactionID(ctx context.Context, orderID, transactionID string) error
	AttachDepositID(ctx context.Context, orderID, depositID string) error
	EmptyCart(ctx context.Context, userID string) error
	GetUserTokenID(ctx context.Context, userID string) (string, error)
}

// Settings holds the gateway configuration injected at construction.
type Settings struct {
	Enabled          bool
	Production       bool
	HasCredentials   bool
	Currencies       []string
	MarketplaceSplit bool
	Industry         string
	FeeAllocation    string
}

// Service drives the checkout-to-deposit flow against the escrow API.
type Service struct {
	client   tradesafe.Client
	store    OrderStore
	urls     storefront.URLs
	builder  *allocation.Builder
	settings Settings
	now      func() time.Time
	log      *logger.Logger
}

// NewService wires the orchestrator. A nil client models the unconfigured
// gateway: ProcessPayment then reports unavailability instead of failing.
func NewService(client tradesafe.Client, store OrderStore, urls storefront.URLs, settings Settings) *Service {
	return &Service{
		client:   client,
		store:    store,
		urls:     urls,
		builder:  allocation.NewBuilder(settings.MarketplaceSplit),
		settings: settings,
		now:      time.Now,
		log:      logger.Discard(),
	}
}

// WithClock overrides the time source used for transaction references.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithLogger injects the structured logger.
func (s *Service) WithLogger(log *logger.Logger) *Service {
	s.log = log
	return s
}

// Available reports whether the gateway should be offered in the given
// checkout context.
func (s *Service) Available(ctx context.Context, a Availability) (bool, error) {
	if !s.currencySupported(a.Currency) {
		return false, nil
	}
	if !s.settings.HasCredentials {
		return false, nil
	}
	// Sandbox guard: the production flag forces the gateway off.
	if s.settings.Production {
		return false, nil
	}
	if !s.settings.Enabled {
		return false, nil
	}

	if a.IsAdmin {
		return true, nil
	}

	tokenID, err := s.store.GetUserTokenID(ctx, a.UserID)
	if err != nil {
		return false, err
	}
	if tokenID == "" {
		return false, nil
	}

	if a.PayingOrderID != "" {
		order, err := s.store.GetOrder(ctx, a.PayingOrderID)
		if err != nil {
			return false, err
		}
		if order.PaymentMethod != "" && !strings.HasPrefix(order.PaymentMethod, ID) {
			return false, nil
		}
	}

	return true, nil
}

// ProcessPayment creates (or reuses) the escrow transaction for the order,
// opens a deposit for the chosen instrument, and returns the buyer redirect.
//
// A nil result with nil error is the gateway-unavailable path. API failures
// propagate to the caller; no retry is performed. The stored transaction id
// makes a resubmitted checkout reuse the first transaction, though two
// near-simultaneous submissions can still both reach the escrow service —
// the order only ever records the id that won the attach.
func (s *Service) ProcessPayment(ctx context.Context, orderID string) (*Result, error) {
	if s.client == nil {
		return nil, nil
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	transactionID, err := s.ensureTransaction(ctx, order)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateStatus(ctx, order.ID, storefront.StatusPending, "Awaiting payment."); err != nil {
		return nil, err
	}
	if err := s.store.EmptyCart(ctx, order.UserID); err != nil {
		return nil, err
	}
	s.log.WithOrder(order.ID).Info("awaiting payment", "transaction_id", transactionID, "method", order.PaymentMethod)

	redirects := tradesafe.Redirects{
		Success: s.urls.ViewOrder(order.ID),
		Failure: s.urls.OrdersList(),
		Cancel:  s.urls.OrdersList(),
	}

	var url string
	switch order.PaymentMethod {
	case MethodManual:
		if _, err := s.createDeposit(ctx, order.ID, transactionID, tradesafe.InstrumentEFT, redirects); err != nil {
			return nil, err
		}
		url = s.urls.ViewOrder(order.ID)

		// Waiting for manual EFT proof of payment.
		if err := s.store.UpdateStatus(ctx, order.ID, storefront.StatusOnHold, "Awaiting Manual EFT payment."); err != nil {
			return nil, err
		}
		s.log.WithOrder(order.ID).Info("awaiting manual EFT payment", "transaction_id", transactionID)
	case MethodEcentric:
		deposit, err := s.createDeposit(ctx, order.ID, transactionID, tradesafe.InstrumentEcentric, redirects)
		if err != nil {
			return nil, err
		}
		url = deposit.PaymentLink
	case MethodOzow:
		deposit, err := s.createDeposit(ctx, order.ID, transactionID, tradesafe.InstrumentOzow, redirects)
		if err != nil {
			return nil, err
		}
		url = deposit.PaymentLink
	case MethodSnapScan:
		deposit, err := s.createDeposit(ctx, order.ID, transactionID, tradesafe.InstrumentSnapScan, redirects)
		if err != nil {
			return nil, err
		}
		url = deposit.PaymentLink
	default:
		url = s.urls.CheckoutPayment(order.ID, order.OrderKey)
	}

	return &Result{Redirect: url}, nil
}

// ensureTransaction returns the order's escrow transaction id, creating one
// if the order does not carry an id yet.
func (s *Service) ensureTransaction(ctx context.Context, order storefront.Order) (string, error) {
	if order.TransactionID != nil {
		return *order.TransactionID, nil
	}

	buyerToken, err := s.store.GetUserTokenID(ctx, order.UserID)
	if err != nil {
		return "", err
	}

	profile, err := s.client.GetProfile(ctx)
	if err != nil {
		return "", fmt.Errorf("gateway: fetch profile: %w", err)
	}

	vendorTokens, err := s.vendorTokens(ctx, order.Items)
	if err != nil {
		return "", err
	}

	built := s.builder.Build(allocation.Input{
		OrderID:      order.ID,
		OrderTotal:   order.Total,
		Items:        order.Items,
		BuyerToken:   buyerToken,
		SellerToken:  profile.Token,
		VendorTokens: vendorTokens,
	})

	meta := tradesafe.TransactionMeta{
		Title:         built.Allocation.Title,
		Description:   built.Allocation.Description,
		Industry:      s.settings.Industry,
		FeeAllocation: s.settings.FeeAllocation,
		Reference:     fmt.Sprintf("%s-%d", order.OrderKey, s.now().Unix()),
	}

	transaction, err := s.client.CreateTransaction(ctx, meta, []tradesafe.Allocation{built.Allocation}, built.Parties)
	if err != nil {
		return "", fmt.Errorf("gateway: create transaction: %w", err)
	}

	if err := s.store.AttachTransactionID(ctx, order.ID, transaction.ID); err != nil {
		// A concurrent submission attached first; its transaction id is the
		// one the order keeps.
		if errors.Is(err, storefront.ErrMetaAlreadySet) {
			current, err := s.store.GetOrder(ctx, order.ID)
			if err != nil {
				return "", err
			}
			if current.TransactionID != nil {
				return *current.TransactionID, nil
			}
		}
		return "", err
	}

	return transaction.ID, nil
}

func (s *Service) createDeposit(ctx context.Context, orderID, transactionID, instrument string, redirects tradesafe.Redirects) (tradesafe.Deposit, error) {
	deposit, err := s.client.CreateTransactionDeposit(ctx, transactionID, instrument, redirects)
	if err != nil {
		return tradesafe.Deposit{}, fmt.Errorf("gateway: create deposit: %w", err)
	}

	if err := s.store.AttachDepositID(ctx, orderID, deposit.ID); err != nil && !errors.Is(err, storefront.ErrMetaAlreadySet) {
		return tradesafe.Deposit{}, err
	}

	return deposit, nil
}

// vendorTokens resolves the escrow token for every distinct vendor present
// in the order's line items. Splitting disabled means no lookups at all.
func (s *Service) vendorTokens(ctx context.Context, items []storefront.LineItem) (map[string]string, error) {
	if !s.settings.MarketplaceSplit {
		return nil, nil
	}

	tokens := make(map[string]string)
	for _, item := range items {
		if _, seen := tokens[item.VendorID]; seen {
			continue
		}
		tokenID, err := s.store.GetUserTokenID(ctx, item.VendorID)
		if err != nil {
			return nil, err
		}
		tokens[item.VendorID] = tokenID
	}
	return tokens, nil
}

func (s *Service) currencySupported(currency string) bool {
	for _, cur := range s.settings.Currencies {
		if strings.EqualFold(cur, currency) {
			return true
		}
	}
	return false
}
