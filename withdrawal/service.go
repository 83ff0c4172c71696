package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"escrowgate/logger"
	"escrowgate/tradesafe"

	"github.com/google/uuid"
)

// ErrInsufficientFunds blocks a withdraw request that exceeds the seller's
// live escrow balance.
var ErrInsufficientFunds = errors.New("withdrawal: not enough funds available")

// ErrUnavailable is returned for tradesafe operations when the escrow
// client is not configured. Other withdraw methods remain unaffected.
var ErrUnavailable = errors.New("withdrawal: escrow service unavailable")

// RequestStore is the marketplace collaborator surface for withdraw requests.
type RequestStore interface {
	Create(ctx context.Context, req Request) (Request, error)
	PendingByUser(ctx context.Context, userID string) ([]Request, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// TokenStore resolves a marketplace user to their escrow token id.
type TokenStore interface {
	GetUserTokenID(ctx context.Context, userID string) (string, error)
}

// Service reconciles marketplace withdraw requests against the escrow
// account balance.
type Service struct {
	client      tradesafe.Client
	store       RequestStore
	tokens      TokenStore
	idGenerator func() string
	log         *logger.Logger
}

func NewService(client tradesafe.Client, store RequestStore, tokens TokenStore) *Service {
	return &Service{
		client:      client,
		store:       store,
		tokens:      tokens,
		idGenerator: func() string { return uuid.NewString() },
		log:         logger.Discard(),
	}
}

// WithIDGenerator overrides request id generation.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithLogger injects the structured logger.
func (s *Service) WithLogger(log *logger.Logger) *Service {
	s.log = log
	return s
}

// ValidateRequest gates a withdraw request against the seller's live escrow
// balance before the request entity is created. Methods other than
// tradesafe are out of scope and always pass.
func (s *Service) ValidateRequest(ctx context.Context, userID string, amount float64, method string) error {
	if method != MethodTradeSafe {
		return nil
	}
	if s.client == nil {
		return ErrUnavailable
	}

	tokenID, err := s.tokens.GetUserTokenID(ctx, userID)
	if err != nil {
		return err
	}

	token, err := s.client.GetToken(ctx, tokenID)
	if err != nil {
		return fmt.Errorf("withdrawal: fetch token: %w", err)
	}

	if amount > token.Balance {
		return ErrInsufficientFunds
	}
	return nil
}

// CreateRequest validates and records a new pending withdraw request.
func (s *Service) CreateRequest(ctx context.Context, userID string, amount float64, method string) (Request, error) {
	if err := s.ValidateRequest(ctx, userID, amount, method); err != nil {
		return Request{}, err
	}

	return s.store.Create(ctx, Request{
		ID:        s.idGenerator(),
		UserID:    userID,
		Amount:    amount,
		Method:    method,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	})
}

// Settle debits the escrow balance for each of the user's pending tradesafe
// requests matching the settled amount, then transitions each request to
// approved on success or cancelled otherwise. A failed debit is an outcome,
// not a pipeline error.
//
// Matching is by amount equality, as the marketplace hook only supplies
// (user, amount, method); with two simultaneous same-amount requests both
// match one settle call.
func (s *Service) Settle(ctx context.Context, userID string, amount float64, method string) error {
	if method != MethodTradeSafe {
		return nil
	}
	if s.client == nil {
		return ErrUnavailable
	}

	tokenID, err := s.tokens.GetUserTokenID(ctx, userID)
	if err != nil {
		return err
	}

	pending, err := s.store.PendingByUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, req := range pending {
		if req.Method != MethodTradeSafe || req.Amount != amount {
			continue
		}

		status := StatusCancelled
		ok, debitErr := s.client.TokenAccountWithdraw(ctx, tokenID, amount)
		if debitErr == nil && ok {
			status = StatusApproved
		}

		if err := s.store.UpdateStatus(ctx, req.ID, status); err != nil {
			return err
		}

		log := s.log.WithUser(userID)
		if debitErr != nil {
			log = log.WithError(debitErr)
		}
		log.Info("withdraw request settled", "request_id", req.ID, "amount", req.Amount, "status", status)
	}

	return nil
}
