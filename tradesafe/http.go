package tradesafe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// HTTPClient talks to the TradeSafe GraphQL API over HTTPS. A bearer token
// is obtained via the OAuth client-credentials grant and refreshed on expiry.
type HTTPClient struct {
	apiURL       string
	authURL      string
	clientID     string
	clientSecret string
	client       *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewHTTPClient(apiURL, authURL, clientID, clientSecret string) *HTTPClient {
	return &HTTPClient{
		apiURL:       strings.TrimRight(apiURL, "/"),
		authURL:      strings.TrimRight(authURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) GetProfile(ctx context.Context) (Profile, error) {
	const query = `query { apiProfile { token } }`

	var out struct {
		APIProfile struct {
			Token string `json:"token"`
		} `json:"apiProfile"`
	}
	if err := c.query(ctx, query, nil, &out); err != nil {
		return Profile{}, err
	}
	return Profile{Token: out.APIProfile.Token}, nil
}

func (c *HTTPClient) CreateTransaction(ctx context.Context, meta TransactionMeta, allocations []Allocation, parties []Party) (Transaction, error) {
	const query = `mutation($input: TransactionCreateInput!) {
  transactionCreate(input: $input) { id }
}`

	allocInputs := make([]map[string]any, 0, len(allocations))
	for _, a := range allocations {
		allocInputs = append(allocInputs, map[string]any{
			"title":         a.Title,
			"description":   a.Description,
			"value":         a.Value,
			"daysToDeliver": a.DaysToDeliver,
			"daysToInspect": a.DaysToInspect,
		})
	}

	partyInputs := make([]map[string]any, 0, len(parties))
	for _, p := range parties {
		input := map[string]any{
			"role":  p.Role,
			"token": p.Token,
		}
		if p.Role == RoleBeneficiaryMerchant {
			input["fee"] = p.Fee
			input["feeType"] = p.FeeType
			input["feeAllocation"] = p.FeeAllocation
		}
		partyInputs = append(partyInputs, input)
	}

	vars := map[string]any{
		"input": map[string]any{
			"title":         meta.Title,
			"description":   meta.Description,
			"industry":      meta.Industry,
			"feeAllocation": meta.FeeAllocation,
			"reference":     meta.Reference,
			"allocations":   allocInputs,
			"parties":       partyInputs,
		},
	}

	var out struct {
		TransactionCreate struct {
			ID string `json:"id"`
		} `json:"transactionCreate"`
	}
	if err := c.query(ctx, query, vars, &out); err != nil {
		return Transaction{}, err
	}
	if out.TransactionCreate.ID == "" {
		return Transaction{}, fmt.Errorf("tradesafe: transaction create returned no id")
	}
	return Transaction{ID: out.TransactionCreate.ID}, nil
}

func (c *HTTPClient) CreateTransactionDeposit(ctx context.Context, transactionID, instrument string, redirects Redirects) (Deposit, error) {
	const query = `mutation($id: ID!, $method: DepositMethod!, $redirects: DepositRedirectsInput!) {
  transactionDepositCreate(id: $id, method: $method, redirects: $redirects) { id paymentLink }
}`

	vars := map[string]any{
		"id":     transactionID,
		"method": instrument,
		"redirects": map[string]any{
			"success": redirects.Success,
			"failure": redirects.Failure,
			"cancel":  redirects.Cancel,
		},
	}

	var out struct {
		TransactionDepositCreate struct {
			ID          string `json:"id"`
			PaymentLink string `json:"paymentLink"`
		} `json:"transactionDepositCreate"`
	}
	if err := c.query(ctx, query, vars, &out); err != nil {
		return Deposit{}, err
	}
	return Deposit{
		ID:          out.TransactionDepositCreate.ID,
		PaymentLink: out.TransactionDepositCreate.PaymentLink,
	}, nil
}

func (c *HTTPClient) GetToken(ctx context.Context, tokenID string) (Token, error) {
	const query = `query($id: ID!) {
  token(id: $id) {
    id
    balance
    user { givenName familyName email mobile idNumber idType idCountry }
    organization { name type tradeName registrationNumber taxNumber }
    bankAccount { accountNumber accountType bank }
    settings { payout { interval } }
  }
}`

	var out struct {
		Token struct {
			ID      string    `json:"id"`
			Balance float64   `json:"balance"`
			User    tokenUser `json:"user"`
			Org     *tokenOrg `json:"organization"`
			Bank    *tokenBA  `json:"bankAccount"`
			Settings struct {
				Payout struct {
					Interval string `json:"interval"`
				} `json:"payout"`
			} `json:"settings"`
		} `json:"token"`
	}
	if err := c.query(ctx, query, map[string]any{"id": tokenID}, &out); err != nil {
		return Token{}, err
	}

	token := Token{
		ID:             out.Token.ID,
		Balance:        out.Token.Balance,
		PayoutInterval: out.Token.Settings.Payout.Interval,
		User: TokenUser{
			GivenName:  out.Token.User.GivenName,
			FamilyName: out.Token.User.FamilyName,
			Email:      out.Token.User.Email,
			Mobile:     out.Token.User.Mobile,
			IDNumber:   out.Token.User.IDNumber,
			IDType:     out.Token.User.IDType,
			IDCountry:  out.Token.User.IDCountry,
		},
	}
	if out.Token.Org != nil {
		token.Organization = &Organization{
			Name:               out.Token.Org.Name,
			Type:               out.Token.Org.Type,
			TradeName:          out.Token.Org.TradeName,
			RegistrationNumber: out.Token.Org.RegistrationNumber,
			TaxNumber:          out.Token.Org.TaxNumber,
		}
	}
	if out.Token.Bank != nil {
		token.BankAccount = &BankAccount{
			AccountNumber: out.Token.Bank.AccountNumber,
			AccountType:   out.Token.Bank.AccountType,
			Bank:          out.Token.Bank.Bank,
		}
	}
	return token, nil
}

func (c *HTTPClient) UpdateToken(ctx context.Context, tokenID string, user TokenUser, org *Organization, bank *BankAccount, payoutInterval string) error {
	const query = `mutation($id: ID!, $input: TokenUpdateInput!) {
  tokenUpdate(id: $id, input: $input) { id }
}`

	userInput := map[string]any{
		"givenName":  user.GivenName,
		"familyName": user.FamilyName,
		"email":      user.Email,
		"mobile":     user.Mobile,
	}
	if user.IDNumber != "" {
		userInput["idNumber"] = user.IDNumber
		userInput["idType"] = user.IDType
		userInput["idCountry"] = user.IDCountry
	}

	input := map[string]any{
		"user": userInput,
		"settings": map[string]any{
			"payout": map[string]any{"interval": payoutInterval},
		},
	}
	if org != nil {
		orgInput := map[string]any{
			"name":               org.Name,
			"type":               org.Type,
			"registrationNumber": org.RegistrationNumber,
		}
		if org.TradeName != "" {
			orgInput["tradeName"] = org.TradeName
		}
		if org.TaxNumber != "" {
			orgInput["taxNumber"] = org.TaxNumber
		}
		input["organization"] = orgInput
	}
	if bank != nil {
		input["bankAccount"] = map[string]any{
			"accountNumber": bank.AccountNumber,
			"accountType":   bank.AccountType,
			"bank":          bank.Bank,
		}
	}

	var out struct {
		TokenUpdate struct {
			ID string `json:"id"`
		} `json:"tokenUpdate"`
	}
	return c.query(ctx, query, map[string]any{"id": tokenID, "input": input}, &out)
}

func (c *HTTPClient) GetEnum(ctx context.Context, name string) (map[string]string, error) {
	const query = `query($name: String!) {
  enum(name: $name) { values { name description } }
}`

	var out struct {
		Enum struct {
			Values []struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			} `json:"values"`
		} `json:"enum"`
	}
	if err := c.query(ctx, query, map[string]any{"name": name}, &out); err != nil {
		return nil, err
	}

	values := make(map[string]string, len(out.Enum.Values))
	for _, v := range out.Enum.Values {
		values[v.Name] = v.Description
	}
	return values, nil
}

func (c *HTTPClient) TokenAccountWithdraw(ctx context.Context, tokenID string, amount float64) (bool, error) {
	const query = `mutation($id: ID!, $value: Float!) {
  tokenAccountWithdraw(id: $id, value: $value)
}`

	var out struct {
		TokenAccountWithdraw bool `json:"tokenAccountWithdraw"`
	}
	if err := c.query(ctx, query, map[string]any{"id": tokenID, "value": amount}, &out); err != nil {
		return false, err
	}
	return out.TokenAccountWithdraw, nil
}

type tokenUser struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	IDNumber   string `json:"idNumber"`
	IDType     string `json:"idType"`
	IDCountry  string `json:"idCountry"`
}

type tokenOrg struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	TradeName          string `json:"tradeName"`
	RegistrationNumber string `json:"registrationNumber"`
	TaxNumber          string `json:"taxNumber"`
}

type tokenBA struct {
	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
	Bank          string `json:"bank"`
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *HTTPClient) query(ctx context.Context, query string, vars map[string]any, out any) error {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("tradesafe: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/graphql", strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("tradesafe: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tradesafe: api request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(raw))
		if msg != "" {
			return fmt.Errorf("tradesafe: api status %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("tradesafe: api status %d", resp.StatusCode)
	}

	var envelope graphqlResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("tradesafe: decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		qe := &QueryError{}
		for _, e := range envelope.Errors {
			qe.Messages = append(qe.Messages, e.Message)
		}
		return qe
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("tradesafe: decode data: %w", err)
		}
	}
	return nil
}

// bearerToken returns a cached access token, refreshing it via the
// client-credentials grant when missing or within a minute of expiry.
func (c *HTTPClient) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/oauth/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("tradesafe: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("tradesafe: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tradesafe: token status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("tradesafe: decode token: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("tradesafe: empty access token")
	}

	c.accessToken = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
