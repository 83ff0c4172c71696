package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"escrowgate/gateway"
	"escrowgate/nonce"
	"escrowgate/payout"
	"escrowgate/storefront"
	"escrowgate/withdrawal"

	"github.com/go-chi/chi/v5"
)

// ActionPayoutSettings names the nonce-protected payout settings form.
const ActionPayoutSettings = "payout_settings"

type Handler struct {
	Gateway     *gateway.Service
	Payout      *payout.Service
	Withdrawals *withdrawal.Service
	Nonces      *nonce.Service
}

func NewHandler(gw *gateway.Service, po *payout.Service, wd *withdrawal.Service, nonces *nonce.Service) *Handler {
	return &Handler{
		Gateway:     gw,
		Payout:      po,
		Withdrawals: wd,
		Nonces:      nonces,
	}
}

type payResponse struct {
	Result   string `json:"result"`
	Redirect string `json:"redirect"`
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	result, err := h.Gateway.ProcessPayment(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, storefront.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusBadGateway, "payment could not be processed")
		return
	}
	if result == nil {
		writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
		return
	}

	writeJSON(w, http.StatusOK, payResponse{Result: "success", Redirect: result.Redirect})
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	available, err := h.Gateway.Available(r.Context(), gateway.Availability{
		Currency:      r.URL.Query().Get("currency"),
		UserID:        r.Header.Get("X-User-Id"),
		IsAdmin:       r.Header.Get("X-Admin") == "true",
		PayingOrderID: r.URL.Query().Get("order"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "availability check failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *Handler) PayoutOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.Payout.FormOptions(r.Context())
	if err != nil {
		if errors.Is(err, payout.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "could not load form options")
		return
	}

	writeJSON(w, http.StatusOK, map[string]map[string]string{
		"banks":             options.Banks,
		"accountTypes":      options.AccountTypes,
		"organizationTypes": options.OrganizationTypes,
		"payoutIntervals":   options.PayoutIntervals,
	})
}

func (h *Handler) PayoutNonce(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	token, err := h.Nonces.Issue(userID, ActionPayoutSettings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not issue nonce")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"nonce": token})
}

type payoutSettingsRequest struct {
	IsOrganization bool `json:"isOrganization"`

	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
	Email      string `json:"email"`
	Mobile     string `json:"mobile"`
	IDNumber   string `json:"idNumber"`

	OrganizationName         string `json:"organizationName"`
	OrganizationType         string `json:"organizationType"`
	OrganizationTradeName    string `json:"organizationTradeName"`
	OrganizationRegistration string `json:"organizationRegistration"`
	OrganizationTaxNumber    string `json:"organizationTaxNumber"`

	AccountNumber string `json:"accountNumber"`
	AccountType   string `json:"accountType"`
	BankCode      string `json:"bankCode"`

	PayoutInterval string `json:"payoutInterval"`
}

// PayoutSettings returns the seller's current profile in the same shape the
// save endpoint accepts, so the settings form can prefill from it.
func (h *Handler) PayoutSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	form, err := h.Payout.SettingsForm(r.Context(), userID)
	if err != nil {
		if errors.Is(err, payout.ErrNoToken) {
			writeError(w, http.StatusNotFound, "no escrow account linked")
			return
		}
		if errors.Is(err, payout.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "could not load settings")
		return
	}

	writeJSON(w, http.StatusOK, payoutSettingsRequest{
		IsOrganization:           form.IsOrganization,
		GivenName:                form.GivenName,
		FamilyName:               form.FamilyName,
		Email:                    form.Email,
		Mobile:                   form.Mobile,
		IDNumber:                 form.IDNumber,
		OrganizationName:         form.OrganizationName,
		OrganizationType:         form.OrganizationType,
		OrganizationTradeName:    form.OrganizationTradeName,
		OrganizationRegistration: form.OrganizationRegistration,
		OrganizationTaxNumber:    form.OrganizationTaxNumber,
		AccountNumber:            form.AccountNumber,
		AccountType:              form.AccountType,
		BankCode:                 form.BankCode,
		PayoutInterval:           form.PayoutInterval,
	})
}

func (h *Handler) SavePayoutSettings(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	// Request authenticity is a precondition of the save operation.
	if err := h.Nonces.Verify(r.Header.Get("X-Nonce"), userID, ActionPayoutSettings); err != nil {
		writeError(w, http.StatusForbidden, "invalid request token")
		return
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req payoutSettingsRequest
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	form := payout.Form{
		IsOrganization:           req.IsOrganization,
		GivenName:                req.GivenName,
		FamilyName:               req.FamilyName,
		Email:                    req.Email,
		Mobile:                   req.Mobile,
		IDNumber:                 req.IDNumber,
		OrganizationName:         req.OrganizationName,
		OrganizationType:         req.OrganizationType,
		OrganizationTradeName:    req.OrganizationTradeName,
		OrganizationRegistration: req.OrganizationRegistration,
		OrganizationTaxNumber:    req.OrganizationTaxNumber,
		AccountNumber:            req.AccountNumber,
		AccountType:              req.AccountType,
		BankCode:                 req.BankCode,
		PayoutInterval:           req.PayoutInterval,
	}

	if err := h.Payout.SaveWithdrawMethod(r.Context(), userID, form); err != nil {
		if msg, ok := validationMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		if errors.Is(err, payout.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "there was a problem updating your account details")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) PayoutBalance(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	balance, err := h.Payout.Balance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, payout.ErrNoToken) {
			writeError(w, http.StatusNotFound, "no escrow account linked")
			return
		}
		if errors.Is(err, payout.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "could not fetch balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (h *Handler) ActiveMethod(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	active, err := h.Payout.ActiveMethod(r.Context(), userID)
	if err != nil {
		if errors.Is(err, payout.ErrNoToken) || errors.Is(err, payout.ErrUnavailable) {
			writeJSON(w, http.StatusOK, map[string]bool{"active": false})
			return
		}
		writeError(w, http.StatusBadGateway, "could not check method status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

type withdrawRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

func (h *Handler) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	created, err := h.Withdrawals.CreateRequest(r.Context(), userID, req.Amount, req.Method)
	if err != nil {
		if errors.Is(err, withdrawal.ErrInsufficientFunds) {
			writeError(w, http.StatusUnprocessableEntity, "not enough funds available")
			return
		}
		if errors.Is(err, withdrawal.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "could not create withdraw request")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"id":     created.ID,
		"status": created.Status,
	})
}

func (h *Handler) SettleWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user id")
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.Withdrawals.Settle(r.Context(), userID, req.Amount, req.Method); err != nil {
		if errors.Is(err, withdrawal.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "payment gateway unavailable")
			return
		}
		writeError(w, http.StatusBadGateway, "settlement failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "settled"})
}

// validationMessage maps payout validation sentinels to their user-facing
// messages; false means the error was not a validation failure.
func validationMessage(err error) (string, bool) {
	messages := map[error]string{
		payout.ErrGivenNameRequired:       "First name is required",
		payout.ErrFamilyNameRequired:      "Last name is required",
		payout.ErrEmailRequired:           "Email is required",
		payout.ErrMobileRequired:          "Mobile number is required",
		payout.ErrIDNumberRequired:        "ID number is required",
		payout.ErrOrgNameRequired:         "Organisation name is required",
		payout.ErrOrgTypeRequired:         "Organisation type is required",
		payout.ErrOrgRegistrationRequired: "Organisation registration number is required",
		payout.ErrInvalidAccountNumber:    "Invalid Account Number",
		payout.ErrInvalidBank:             "Invalid Bank",
		payout.ErrInvalidAccountType:      "Invalid Account Type",
	}
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg, true
		}
	}
	return "", false
}
