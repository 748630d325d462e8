package handler

import (
	"errors"
	"net/http"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// WalletHandler serves the caller's own wallet: balances, deposit addresses,
// deposit and withdrawal requests and transaction history.
type WalletHandler struct {
	wallets      usecase.WalletUsecase
	transactions usecase.TransactionUsecase
	addresses    usecase.AddressUsecase
	log          logger.Logger
}

type addressView struct {
	Cryptocurrency models.Currency `json:"cryptocurrency"`
	Symbol         string          `json:"symbol"`
	Address        string          `json:"address"`
	Network        string          `json:"network,omitempty"`
}

func newAddressView(a *models.DepositAddress) addressView {
	return addressView{
		Cryptocurrency: a.Currency,
		Symbol:         a.Symbol(),
		Address:        a.Address,
		Network:        a.Network,
	}
}

func NewWalletHandler(wallets usecase.WalletUsecase, transactions usecase.TransactionUsecase, addresses usecase.AddressUsecase, log logger.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, transactions: transactions, addresses: addresses, log: log}
}

// RegisterRoutes expects the authenticated /api/v1 subrouter.
func (h *WalletHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/wallet/balance", h.GetBalances).Methods(http.MethodGet)
	router.HandleFunc("/wallet/balance/{currency}", h.GetBalance).Methods(http.MethodGet)
	router.HandleFunc("/wallet/deposit/addresses", h.GetDepositAddresses).Methods(http.MethodGet)
	router.HandleFunc("/wallet/deposit/address/{currency}", h.GetDepositAddress).Methods(http.MethodGet)
	router.HandleFunc("/wallet/deposit/request", h.RequestDeposit).Methods(http.MethodPost)
	router.HandleFunc("/wallet/withdraw/request", h.RequestWithdrawal).Methods(http.MethodPost)
	router.HandleFunc("/wallet/transactions", h.GetTransactions).Methods(http.MethodGet)
	router.HandleFunc("/wallet/transactions/{id}", h.GetTransaction).Methods(http.MethodGet)
}

func (h *WalletHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	summary, err := h.wallets.GetAllBalances(r.Context(), p.UserID)
	if err != nil {
		handleOperationError(w, h.log, "get_balances", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Balances retrieved successfully", summary)
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	line, err := h.wallets.GetBalance(r.Context(), p.UserID, mux.Vars(r)["currency"])
	if err != nil {
		handleOperationError(w, h.log, "get_balance", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Balance retrieved successfully", line)
}

func (h *WalletHandler) GetDepositAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.addresses.ListActive(r.Context())
	if err != nil {
		handleOperationError(w, h.log, "list_deposit_addresses", err)
		return
	}

	views := make([]addressView, 0, len(addresses))
	for i := range addresses {
		views = append(views, newAddressView(&addresses[i]))
	}
	respondWithSuccess(w, http.StatusOK, "Deposit addresses retrieved successfully",
		map[string]interface{}{"addresses": views})
}

func (h *WalletHandler) GetDepositAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.GetActive(r.Context(), mux.Vars(r)["currency"])
	if err != nil {
		if errors.Is(err, usecase.ErrDepositAddressNotFound) {
			respondWithError(w, http.StatusNotFound, "Deposit address not found for this cryptocurrency")
			return
		}
		handleOperationError(w, h.log, "get_deposit_address", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Deposit address retrieved successfully",
		map[string]interface{}{"address": newAddressView(a)})
}

func (h *WalletHandler) RequestDeposit(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req DepositRequest
	if !decodeRequest(w, r, h.log, &req, false) {
		return
	}

	res, err := h.transactions.RequestDeposit(r.Context(), p.UserID, req.Cryptocurrency, req.Amount, req.TxHash)
	if err != nil {
		handleOperationError(w, h.log, "request_deposit", err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, "Deposit request submitted", map[string]interface{}{
		"transaction":    res.Transaction.View(),
		"depositAddress": res.DepositAddress,
		"message":        "Deposit request submitted. Send funds to the address above and await admin confirmation.",
	})
}

func (h *WalletHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req WithdrawalRequest
	if !decodeRequest(w, r, h.log, &req, false) {
		return
	}

	res, err := h.transactions.RequestWithdrawal(r.Context(), p.UserID, req.Cryptocurrency, req.Amount, req.ToAddress)
	if err != nil {
		handleOperationError(w, h.log, "request_withdrawal", err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, "Withdrawal request submitted", map[string]interface{}{
		"transaction": res.Transaction.View(),
		"newBalance":  res.NewBalance,
		"message":     "Withdrawal request submitted. Balance deducted. Awaiting admin approval.",
	})
}

func (h *WalletHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	result, err := h.transactions.History(r.Context(), p.UserID, usecase.TransactionQuery{
		Type:     q.Get("type"),
		Currency: q.Get("cryptocurrency"),
		Status:   q.Get("status"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		handleOperationError(w, h.log, "transaction_history", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Transactions retrieved successfully", result)
}

func (h *WalletHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "Transaction not found")
		return
	}

	t, err := h.transactions.Get(r.Context(), p.UserID, id)
	if err != nil {
		handleOperationError(w, h.log, "get_transaction", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Transaction retrieved successfully",
		map[string]interface{}{"transaction": t.View()})
}
