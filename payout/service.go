// Package payout manages seller onboarding for escrow withdrawals: profile
// capture, live balance reads, and withdraw-method activation.
package payout

import (
	"context"
	"errors"
	"fmt"

	"escrowgate/tradesafe"
)

// Validation failures, one distinct message per rule. Validation is
// fail-fast: the first failing rule wins and nothing is persisted.
var (
	ErrGivenNameRequired       = errors.New("payout: first name is required")
	ErrFamilyNameRequired      = errors.New("payout: last name is required")
	ErrEmailRequired           = errors.New("payout: email is required")
	ErrMobileRequired          = errors.New("payout: mobile number is required")
	ErrIDNumberRequired        = errors.New("payout: ID number is required")
	ErrOrgNameRequired         = errors.New("payout: organisation name is required")
	ErrOrgTypeRequired         = errors.New("payout: organisation type is required")
	ErrOrgRegistrationRequired = errors.New("payout: organisation registration number is required")
	ErrInvalidAccountNumber    = errors.New("payout: invalid account number")
	ErrInvalidBank             = errors.New("payout: invalid bank")
	ErrInvalidAccountType      = errors.New("payout: invalid account type")

	// ErrUpdateFailed is the single generic message shown when the escrow
	// service rejects or cannot process a profile update. Raw client errors
	// never reach the seller.
	ErrUpdateFailed = errors.New("payout: there was a problem updating your account details")

	// ErrNoToken signals the seller has no linked escrow identity.
	ErrNoToken = errors.New("payout: no escrow token linked")

	// ErrUnavailable is returned when the escrow client is not configured.
	// Missing credentials degrade payout operations, they never panic or
	// fail hard.
	ErrUnavailable = errors.New("payout: escrow service unavailable")
)

// Form is the explicit profile-submission struct; every recognised field is
// enumerated here and unknown fields are rejected at decode time.
type Form struct {
	IsOrganization bool

	GivenName  string
	FamilyName string
	Email      string
	Mobile     string
	IDNumber   string

	OrganizationName         string
	OrganizationType         string
	OrganizationTradeName    string
	OrganizationRegistration string
	OrganizationTaxNumber    string

	AccountNumber string
	AccountType   string
	BankCode      string

	PayoutInterval string
}

// TokenStore resolves a marketplace user to their escrow token id.
type TokenStore interface {
	GetUserTokenID(ctx context.Context, userID string) (string, error)
}

// Options carries the enum mappings the settings form renders.
type Options struct {
	Banks             map[string]string
	AccountTypes      map[string]string
	OrganizationTypes map[string]string
	PayoutIntervals   map[string]string
}

// Service validates and submits seller onboarding data.
type Service struct {
	client          tradesafe.Client
	store           TokenStore
	defaultInterval string
}

func NewService(client tradesafe.Client, store TokenStore) *Service {
	return &Service{client: client, store: store}
}

// WithDefaultInterval sets the payout interval shown to sellers whose token
// carries none yet.
func (s *Service) WithDefaultInterval(interval string) *Service {
	s.defaultInterval = interval
	return s
}

// SaveWithdrawMethod validates the submitted profile and pushes it to the
// escrow service. The caller must have verified request authenticity (the
// form nonce) before invoking this.
func (s *Service) SaveWithdrawMethod(ctx context.Context, sellerID string, form Form) error {
	if err := Validate(form); err != nil {
		return err
	}
	if s.client == nil {
		return ErrUnavailable
	}

	tokenID, err := s.store.GetUserTokenID(ctx, sellerID)
	if err != nil || tokenID == "" {
		return ErrUpdateFailed
	}

	user := tradesafe.TokenUser{
		GivenName:  form.GivenName,
		FamilyName: form.FamilyName,
		Email:      form.Email,
		Mobile:     form.Mobile,
	}

	var org *tradesafe.Organization
	if !form.IsOrganization {
		user.IDNumber = form.IDNumber
		user.IDType = tradesafe.IDTypeNational
		user.IDCountry = tradesafe.IDCountryZA
	} else {
		org = &tradesafe.Organization{
			Name:               form.OrganizationName,
			Type:               form.OrganizationType,
			RegistrationNumber: form.OrganizationRegistration,
			TradeName:          form.OrganizationTradeName,
			TaxNumber:          form.OrganizationTaxNumber,
		}
	}

	var bank *tradesafe.BankAccount
	if form.AccountNumber != "" {
		bank = &tradesafe.BankAccount{
			AccountNumber: form.AccountNumber,
			AccountType:   form.AccountType,
			Bank:          form.BankCode,
		}
	}

	if err := s.client.UpdateToken(ctx, tokenID, user, org, bank, form.PayoutInterval); err != nil {
		return ErrUpdateFailed
	}

	return nil
}

// Validate applies the profile rules in submission order.
func Validate(form Form) error {
	if form.GivenName == "" {
		return ErrGivenNameRequired
	}
	if form.FamilyName == "" {
		return ErrFamilyNameRequired
	}
	if form.Email == "" {
		return ErrEmailRequired
	}
	if form.Mobile == "" {
		return ErrMobileRequired
	}

	if !form.IsOrganization {
		if form.IDNumber == "" {
			return ErrIDNumberRequired
		}
	} else {
		if form.OrganizationName == "" {
			return ErrOrgNameRequired
		}
		if form.OrganizationType == "" {
			return ErrOrgTypeRequired
		}
		if form.OrganizationRegistration == "" {
			return ErrOrgRegistrationRequired
		}
	}

	if form.AccountNumber != "" {
		if !isNumeric(form.AccountNumber) {
			return ErrInvalidAccountNumber
		}
		if form.BankCode == "" {
			return ErrInvalidBank
		}
		if form.AccountType == "" {
			return ErrInvalidAccountType
		}
	}

	return nil
}

// Balance fetches the seller's live escrow balance. Never cached.
func (s *Service) Balance(ctx context.Context, sellerID string) (float64, error) {
	token, err := s.token(ctx, sellerID)
	if err != nil {
		return 0, err
	}
	return token.Balance, nil
}

// Profile fetches the seller's current escrow identity record for display.
func (s *Service) Profile(ctx context.Context, sellerID string) (tradesafe.Token, error) {
	return s.token(ctx, sellerID)
}

// SettingsForm returns the seller's live profile as a prefilled submission
// form. A token without a payout interval falls back to the configured
// default.
func (s *Service) SettingsForm(ctx context.Context, sellerID string) (Form, error) {
	token, err := s.token(ctx, sellerID)
	if err != nil {
		return Form{}, err
	}

	form := Form{
		GivenName:      token.User.GivenName,
		FamilyName:     token.User.FamilyName,
		Email:          token.User.Email,
		Mobile:         token.User.Mobile,
		IDNumber:       token.User.IDNumber,
		PayoutInterval: token.PayoutInterval,
	}
	if form.PayoutInterval == "" {
		form.PayoutInterval = s.defaultInterval
	}

	if token.Organization != nil {
		form.IsOrganization = true
		form.OrganizationName = token.Organization.Name
		form.OrganizationType = token.Organization.Type
		form.OrganizationTradeName = token.Organization.TradeName
		form.OrganizationRegistration = token.Organization.RegistrationNumber
		form.OrganizationTaxNumber = token.Organization.TaxNumber
	}
	if token.BankAccount != nil {
		form.AccountNumber = token.BankAccount.AccountNumber
		form.AccountType = token.BankAccount.AccountType
		form.BankCode = token.BankAccount.Bank
	}

	return form, nil
}

// ActiveMethod reports whether the tradesafe withdraw method is active for
// the seller: it requires banking details on the token.
func (s *Service) ActiveMethod(ctx context.Context, sellerID string) (bool, error) {
	token, err := s.token(ctx, sellerID)
	if err != nil {
		return false, err
	}
	return token.BankAccount != nil && token.BankAccount.AccountNumber != "", nil
}

// FormOptions fetches the enum mappings used by the settings form.
func (s *Service) FormOptions(ctx context.Context) (Options, error) {
	if s.client == nil {
		return Options{}, ErrUnavailable
	}

	banks, err := s.client.GetEnum(ctx, tradesafe.EnumUniversalBranchCode)
	if err != nil {
		return Options{}, fmt.Errorf("payout: fetch banks: %w", err)
	}
	accountTypes, err := s.client.GetEnum(ctx, tradesafe.EnumBankAccountType)
	if err != nil {
		return Options{}, fmt.Errorf("payout: fetch account types: %w", err)
	}
	orgTypes, err := s.client.GetEnum(ctx, tradesafe.EnumOrganizationType)
	if err != nil {
		return Options{}, fmt.Errorf("payout: fetch organization types: %w", err)
	}
	intervals, err := s.client.GetEnum(ctx, tradesafe.EnumPayoutInterval)
	if err != nil {
		return Options{}, fmt.Errorf("payout: fetch payout intervals: %w", err)
	}

	return Options{
		Banks:             banks,
		AccountTypes:      accountTypes,
		OrganizationTypes: orgTypes,
		PayoutIntervals:   intervals,
	}, nil
}

func (s *Service) token(ctx context.Context, sellerID string) (tradesafe.Token, error) {
	if s.client == nil {
		return tradesafe.Token{}, ErrUnavailable
	}

	tokenID, err := s.store.GetUserTokenID(ctx, sellerID)
	if err != nil {
		return tradesafe.Token{}, err
	}
	if tokenID == "" {
		return tradesafe.Token{}, ErrNoToken
	}
	return s.client.GetToken(ctx, tokenID)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
