package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Nzyazin/cryptovault/internal/core/ledger"
	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AdminHandler serves the admin decision workflow together with wallet
// provisioning, funding and the deposit address registry.
type AdminHandler struct {
	wallets      usecase.WalletUsecase
	transactions usecase.TransactionUsecase
	addresses    usecase.AddressUsecase
	log          logger.Logger
}

type decideFunc func(ctx context.Context, adminID, txID uuid.UUID, notes string) (*usecase.DecisionResult, error)

func NewAdminHandler(wallets usecase.WalletUsecase, transactions usecase.TransactionUsecase, addresses usecase.AddressUsecase, log logger.Logger) *AdminHandler {
	return &AdminHandler{wallets: wallets, transactions: transactions, addresses: addresses, log: log}
}

// RegisterRoutes expects the /api/v1/admin subrouter guarded by RequireAdmin.
func (h *AdminHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/wallets", h.OpenWallet).Methods(http.MethodPost)
	router.HandleFunc("/users/{userId}/wallet", h.GetUserWallet).Methods(http.MethodGet)
	router.HandleFunc("/users/{userId}/fund", h.FundUser).Methods(http.MethodPost)

	router.HandleFunc("/crypto-addresses", h.UpsertAddress).Methods(http.MethodPost)
	router.HandleFunc("/crypto-addresses", h.ListAddresses).Methods(http.MethodGet)
	router.HandleFunc("/crypto-addresses/{currency}", h.GetAddress).Methods(http.MethodGet)
	router.HandleFunc("/crypto-addresses/{currency}/toggle-status", h.ToggleAddress).Methods(http.MethodPut)

	router.HandleFunc("/transactions/deposits/pending", h.pending(models.TransactionDeposit)).Methods(http.MethodGet)
	router.HandleFunc("/transactions/withdrawals/pending", h.pending(models.TransactionWithdrawal)).Methods(http.MethodGet)
	router.HandleFunc("/transactions/deposits/{id}/confirm",
		h.decide("confirm_deposit", "Deposit confirmed successfully", h.transactions.ConfirmDeposit)).Methods(http.MethodPut)
	router.HandleFunc("/transactions/deposits/{id}/reject",
		h.decide("reject_deposit", "Deposit rejected", h.transactions.RejectDeposit)).Methods(http.MethodPut)
	router.HandleFunc("/transactions/withdrawals/{id}/approve",
		h.decide("approve_withdrawal", "Withdrawal approved successfully", h.transactions.ApproveWithdrawal)).Methods(http.MethodPut)
	router.HandleFunc("/transactions/withdrawals/{id}/reject",
		h.decide("reject_withdrawal", "Withdrawal rejected and balance refunded", h.transactions.RejectWithdrawal)).Methods(http.MethodPut)
	router.HandleFunc("/transactions/{id}/cancel",
		h.decide("cancel", "Transaction cancelled", h.transactions.Cancel)).Methods(http.MethodPut)
}

func (h *AdminHandler) OpenWallet(w http.ResponseWriter, r *http.Request) {
	var req OpenWalletRequest
	if !decodeRequest(w, r, h.log, &req, false) {
		return
	}
	userID := uuid.MustParse(req.UserID)

	wallet, err := h.wallets.OpenWallet(r.Context(), userID)
	if err != nil {
		handleOperationError(w, h.log, "open_wallet", err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, "Wallet created successfully", map[string]interface{}{
		"wallet": models.WalletSummary{
			WalletID:     wallet.ID,
			TotalValue:   wallet.TotalValue,
			Balances:     ledger.Lines(wallet),
			LastActivity: wallet.LastActivity,
		},
	})
}

func (h *AdminHandler) GetUserWallet(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User wallet not found")
		return
	}

	summary, err := h.wallets.GetAllBalances(r.Context(), userID)
	if err != nil {
		handleOperationError(w, h.log, "get_user_wallet", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "User wallet retrieved successfully",
		map[string]interface{}{"userId": userID, "wallet": summary})
}

func (h *AdminHandler) FundUser(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	userID, err := uuid.Parse(mux.Vars(r)["userId"])
	if err != nil {
		respondWithError(w, http.StatusNotFound, "User wallet not found")
		return
	}
	var req FundRequest
	if !decodeRequest(w, r, h.log, &req, false) {
		return
	}

	funding, err := h.wallets.FundAccount(r.Context(), admin.UserID, userID, req.Cryptocurrency, req.Amount)
	if err != nil {
		handleOperationError(w, h.log, "fund_account", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "User account funded successfully",
		map[string]interface{}{"userId": userID, "funding": funding})
}

func (h *AdminHandler) UpsertAddress(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}
	var req AddressRequest
	if !decodeRequest(w, r, h.log, &req, false) {
		return
	}

	a, err := h.addresses.Upsert(r.Context(), admin.UserID, req.Cryptocurrency, req.Address, req.Network)
	if err != nil {
		handleOperationError(w, h.log, "save_address", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Cryptocurrency address saved successfully",
		map[string]interface{}{"cryptoAddress": a})
}

func (h *AdminHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.addresses.List(r.Context())
	if err != nil {
		handleOperationError(w, h.log, "list_addresses", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Cryptocurrency addresses retrieved successfully",
		map[string]interface{}{"cryptoAddresses": addresses})
}

func (h *AdminHandler) GetAddress(w http.ResponseWriter, r *http.Request) {
	a, err := h.addresses.Get(r.Context(), mux.Vars(r)["currency"])
	if err != nil {
		if errors.Is(err, usecase.ErrDepositAddressNotFound) {
			respondWithError(w, http.StatusNotFound, "Cryptocurrency address not found")
			return
		}
		handleOperationError(w, h.log, "get_address", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Cryptocurrency address retrieved successfully",
		map[string]interface{}{"cryptoAddress": a})
}

func (h *AdminHandler) ToggleAddress(w http.ResponseWriter, r *http.Request) {
	admin, ok := principal(w, r)
	if !ok {
		return
	}

	a, err := h.addresses.ToggleStatus(r.Context(), admin.UserID, mux.Vars(r)["currency"])
	if err != nil {
		if errors.Is(err, usecase.ErrDepositAddressNotFound) {
			respondWithError(w, http.StatusNotFound, "Cryptocurrency address not found")
			return
		}
		handleOperationError(w, h.log, "toggle_address", err)
		return
	}

	message := "Cryptocurrency address deactivated"
	if a.IsActive {
		message = "Cryptocurrency address activated"
	}
	respondWithSuccess(w, http.StatusOK, message, map[string]interface{}{"cryptoAddress": a})
}

func (h *AdminHandler) pending(txType models.TransactionType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactions, err := h.transactions.ListPending(r.Context(), txType)
		if err != nil {
			handleOperationError(w, h.log, "list_pending", err)
			return
		}
		views := make([]models.AdminTransactionView, 0, len(transactions))
		for i := range transactions {
			views = append(views, transactions[i].AdminView())
		}
		respondWithSuccess(w, http.StatusOK, "Pending transactions retrieved successfully", map[string]interface{}{
			"transactions": views,
			"count":        len(views),
		})
	}
}

func (h *AdminHandler) decide(op, message string, fn decideFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, ok := principal(w, r)
		if !ok {
			return
		}
		txID, err := uuid.Parse(mux.Vars(r)["id"])
		if err != nil {
			respondWithError(w, http.StatusNotFound, "Transaction not found")
			return
		}
		var req DecisionRequest
		if !decodeRequest(w, r, h.log, &req, true) {
			return
		}

		res, err := fn(r.Context(), admin.UserID, txID, req.AdminNotes)
		if err != nil {
			handleOperationError(w, h.log, op, err)
			return
		}

		h.log.Info("Admin decision applied",
			logger.StringField("operation", op),
			logger.StringField("transaction", res.Transaction.Code()),
			logger.UUIDField("admin_id", admin.UserID))

		data := map[string]interface{}{
			"transaction": res.Transaction.AdminView(),
			"refunded":    res.Refunded,
		}
		if res.Balance != nil {
			data["newBalance"] = *res.Balance
		}
		if res.TotalValue != nil {
			data["totalValue"] = *res.TotalValue
		}
		respondWithSuccess(w, http.StatusOK, message, data)
	}
}
