package tradesafe

// Party roles recognised by the escrow service.
const (
	RoleBuyer               = "BUYER"
	RoleSeller              = "SELLER"
	RoleBeneficiaryMerchant = "BENEFICIARY_MERCHANT"
)

// Fee handling for beneficiary parties.
const (
	FeeTypeFlat         = "FLAT"
	FeeAllocationSeller = "SELLER"
)

// Deposit instrument codes.
const (
	InstrumentEFT      = "EFT"
	InstrumentEcentric = "ECEN"
	InstrumentOzow     = "OZOW"
	InstrumentSnapScan = "SNAP"
)

// Enum names accepted by GetEnum.
const (
	EnumUniversalBranchCode = "UniversalBranchCode"
	EnumBankAccountType     = "BankAccountType"
	EnumOrganizationType    = "OrganizationType"
	EnumPayoutInterval      = "PayoutInterval"
)

// Identity document defaults applied to individual sellers.
const (
	IDTypeNational = "NATIONAL"
	IDCountryZA    = "ZAF"
)

// TransactionMeta carries the transaction-level fields for CreateTransaction.
type TransactionMeta struct {
	Title         string
	Description   string
	Industry      string
	FeeAllocation string
	Reference     string
}

// Allocation is a billable unit within a transaction.
type Allocation struct {
	Title         string
	Description   string
	Value         float64
	DaysToDeliver int
	DaysToInspect int
}

// Party is a transaction participant. Fee fields are only meaningful for
// BENEFICIARY_MERCHANT parties.
type Party struct {
	Role          string
	Token         string
	Fee           float64
	FeeType       string
	FeeAllocation string
}

// Transaction is the result of CreateTransaction.
type Transaction struct {
	ID string
}

// Redirects holds the return URLs handed to the payment processor.
type Redirects struct {
	Success string
	Failure string
	Cancel  string
}

// Deposit is the result of CreateTransactionDeposit. PaymentLink is empty
// for manual EFT deposits.
type Deposit struct {
	ID          string
	PaymentLink string
}

// Profile identifies the merchant's own escrow account.
type Profile struct {
	Token string
}

// TokenUser holds the personal details attached to an escrow token.
type TokenUser struct {
	GivenName  string
	FamilyName string
	Email      string
	Mobile     string
	IDNumber   string
	IDType     string
	IDCountry  string
}

// Organization holds the company details for non-individual tokens.
type Organization struct {
	Name               string
	Type               string
	TradeName          string
	RegistrationNumber string
	TaxNumber          string
}

// BankAccount holds payout banking details. Bank is a universal branch code.
type BankAccount struct {
	AccountNumber string
	AccountType   string
	Bank          string
}

// Token is an escrow identity record with its live balance.
type Token struct {
	ID             string
	User           TokenUser
	Organization   *Organization
	BankAccount    *BankAccount
	PayoutInterval string
	Balance        float64
}
