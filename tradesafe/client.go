package tradesafe

import (
	"context"
	"fmt"
	"strings"
)

// Client is the escrow API surface consumed by the gateway. Implementations
// are expected to be safe for concurrent use.
type Client interface {
	// GetProfile returns the merchant's own escrow profile.
	GetProfile(ctx context.Context) (Profile, error)
	// CreateTransaction registers a new escrow transaction and returns its id.
	CreateTransaction(ctx context.Context, meta TransactionMeta, allocations []Allocation, parties []Party) (Transaction, error)
	// CreateTransactionDeposit creates a funding instruction for a transaction.
	CreateTransactionDeposit(ctx context.Context, transactionID, instrument string, redirects Redirects) (Deposit, error)
	// GetToken fetches a seller/buyer identity record including its live balance.
	GetToken(ctx context.Context, tokenID string) (Token, error)
	// UpdateToken replaces the identity, organization, and banking details on a token.
	UpdateToken(ctx context.Context, tokenID string, user TokenUser, org *Organization, bank *BankAccount, payoutInterval string) error
	// GetEnum returns a code-to-label mapping for the named enum.
	GetEnum(ctx context.Context, name string) (map[string]string, error)
	// TokenAccountWithdraw debits the token's escrow balance. The bool reports
	// whether the service accepted the withdrawal.
	TokenAccountWithdraw(ctx context.Context, tokenID string, amount float64) (bool, error)
}

// QueryError is returned when the escrow service rejects a request at the
// API level (as opposed to transport failures).
type QueryError struct {
	Messages []string
}

func (e *QueryError) Error() string {
	if len(e.Messages) == 0 {
		return "tradesafe: query rejected"
	}
	return fmt.Sprintf("tradesafe: query rejected: %s", strings.Join(e.Messages, "; "))
}
