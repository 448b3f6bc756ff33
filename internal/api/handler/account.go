// internal/api/handler/account.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"traderiser/internal/api/types"
	"traderiser/internal/domain"
	"traderiser/internal/service"
	"traderiser/internal/util"
)

// AccountHandler handles account, balance and wallet transaction requests.
type AccountHandler struct {
	provision service.ProvisionService
	ledger    service.LedgerService
	logger    *slog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(provision service.ProvisionService, ledger service.LedgerService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		provision: provision,
		ledger:    ledger,
		logger:    logger,
	}
}

func (h *AccountHandler) ownedAccount(w http.ResponseWriter, r *http.Request) (*domain.Account, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return nil, false
	}
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return nil, false
	}
	account, err := h.provision.GetOwnedAccount(r.Context(), user.ID, accountID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return nil, false
	}
	return account, true
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	offset, err = strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// CreateAccountRequest represents the request body for opening an account.
type CreateAccountRequest struct {
	AccountType string `json:"account_type"`
}

// CreateAccount handles opening an additional account.
// POST /accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountType == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	account, err := h.provision.Provision(r.Context(), user.ID, domain.AccountType(req.AccountType))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, account)
}

// ListAccounts returns the caller's accounts with derived balances.
// GET /accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		respondWithError(h.logger, w, util.ErrInvalidCredentials)
		return
	}
	accounts, err := h.provision.ListAccounts(r.Context(), user.ID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}

	out := make([]map[string]interface{}, 0, len(accounts))
	for i := range accounts {
		balance, err := h.ledger.AccountBalance(r.Context(), &accounts[i])
		if err != nil {
			respondWithError(h.logger, w, err)
			return
		}
		out = append(out, map[string]interface{}{
			"account": accounts[i],
			"balance": balance,
		})
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{"data": out})
}

// GetBalance returns an account's derived balance.
// GET /accounts/{accountID}/balance
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.AccountBalance(r.Context(), account)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"account_id": account.ID,
		"balance":    balance,
		"currency":   domain.CurrencyUSD,
	})
}

// ResetDemo restores a demo account to its opening state.
// POST /accounts/{accountID}/reset
func (h *AccountHandler) ResetDemo(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	balance, err := h.ledger.ResetDemoBalance(r.Context(), account)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]interface{}{
		"message": "Demo account reset",
		"balance": balance,
	})
}

// GetStatement returns an account's statement, newest first.
// GET /accounts/{accountID}/statement
func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	limit, offset := parsePagination(r)
	entries, err := h.ledger.GetStatement(r.Context(), account.ID, limit, offset)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, types.PaginatedResponse[domain.StatementEntry]{
		Data:   entries,
		Limit:  limit,
		Offset: offset,
	})
}

// GetTransactions returns the main wallet's transaction history.
// GET /accounts/{accountID}/transactions
func (h *AccountHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	wallet, err := h.ledger.GetMainWallet(r.Context(), account)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	limit, offset := parsePagination(r)
	txs, err := h.ledger.GetWalletTransactions(r.Context(), wallet.ID, limit, offset)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, types.PaginatedResponse[domain.WalletTransaction]{
		Data:   txs,
		Limit:  limit,
		Offset: offset,
	})
}

// DepositRequest represents the request body for a deposit.
type DepositRequest struct {
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	ConvertedAmount *decimal.Decimal `json:"converted_amount,omitempty"`
	MpesaPhone      *string          `json:"mpesa_phone,omitempty"`
}

// Deposit records a pending deposit. Nothing is credited until an operator
// drives the transaction to completed.
// POST /accounts/{accountID}/deposit
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() || req.Currency == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	walletTx, err := h.ledger.RequestDeposit(r.Context(), account, req.Amount, req.Currency, req.ConvertedAmount, req.MpesaPhone)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, map[string]interface{}{
		"message":      "Deposit recorded",
		"transaction":  walletTx,
		"reference_id": walletTx.ReferenceID,
	})
}

// WithdrawRequest represents the request body for a withdrawal.
type WithdrawRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	MpesaPhone *string         `json:"mpesa_phone,omitempty"`
}

// Withdraw debits the wallet and records a pending withdrawal.
// POST /accounts/{accountID}/withdraw
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	account, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	walletTx, err := h.ledger.RequestWithdrawal(r.Context(), account, req.Amount, req.MpesaPhone)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusCreated, map[string]interface{}{
		"message":      "Withdrawal recorded",
		"transaction":  walletTx,
		"reference_id": walletTx.ReferenceID,
	})
}

// TransferRequest represents the request body for an account transfer.
type TransferRequest struct {
	ToAccountID int64           `json:"to_account_id"`
	Amount      decimal.Decimal `json:"amount"`
}

// Transfer moves funds from one of the caller's accounts to another account.
// POST /accounts/{accountID}/transfer
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	fromAccount, ok := h.ownedAccount(w, r)
	if !ok {
		return
	}
	user, _ := UserFromContext(r.Context())

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ToAccountID == 0 {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	toAccount, err := h.provision.GetOwnedAccount(r.Context(), user.ID, req.ToAccountID)
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	if err := h.ledger.Transfer(r.Context(), fromAccount, toAccount, req.Amount); err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Transfer successful"})
}

// StatusChangeRequest represents an operator-driven status transition.
type StatusChangeRequest struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// ChangeTransactionStatus drives a wallet transaction transition. Admin only.
// POST /admin/wallet-transactions/{txID}/status
func (h *AccountHandler) ChangeTransactionStatus(w http.ResponseWriter, r *http.Request) {
	txID, err := strconv.ParseInt(chi.URLParam(r, "txID"), 10, 64)
	if err != nil {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}
	var req StatusChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewStatus == "" {
		respondWithError(h.logger, w, util.ErrInvalidInput)
		return
	}

	err = h.ledger.OnStatusChange(r.Context(), txID,
		domain.WalletTransactionStatus(req.OldStatus), domain.WalletTransactionStatus(req.NewStatus))
	if err != nil {
		respondWithError(h.logger, w, err)
		return
	}
	respondWithJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Status updated"})
}
