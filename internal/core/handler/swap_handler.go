package handler

import (
	"net/http"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
	"github.com/gorilla/mux"
)

type SwapHandler struct {
	swaps usecase.SwapUsecase
	log   logger.Logger
}

func NewSwapHandler(swaps usecase.SwapUsecase, log logger.Logger) *SwapHandler {
	return &SwapHandler{swaps: swaps, log: log}
}

func (h *SwapHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/swap/execute", h.ExecuteSwap).Methods(http.MethodPost)
	router.HandleFunc("/swap/history", h.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/swap/statistics", h.GetStatistics).Methods(http.MethodGet)
	// registered last so the fixed paths above win
	router.HandleFunc("/swap/{id}", h.GetSwap).Methods(http.MethodGet)
}

func (h *SwapHandler) ExecuteSwap(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req SwapRequest
	if !decodeRequest(w, r, h.log, &req, false) {
		return
	}

	res, err := h.swaps.ExecuteSwap(r.Context(), p.UserID, req.FromCrypto, req.ToCrypto, req.Amount)
	if err != nil {
		handleOperationError(w, h.log, "swap", err)
		return
	}

	sw := res.Swap
	respondWithSuccess(w, http.StatusOK, "Swap executed successfully", map[string]interface{}{
		"swap":          sw.View(),
		"transactionId": res.Transaction.Code(),
		"balances": map[string]interface{}{
			string(sw.FromCurrency): res.FromBalance,
			string(sw.ToCurrency):   res.ToBalance,
		},
		"totalValue": res.TotalValue,
	})
}

func (h *SwapHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.swaps.History(r.Context(), p.UserID, usecase.SwapQuery{
		From:  q.Get("fromCrypto"),
		To:    q.Get("toCrypto"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		handleOperationError(w, h.log, "swap_history", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Swap history retrieved successfully", result)
}

func (h *SwapHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	stats, err := h.swaps.Statistics(r.Context(), p.UserID)
	if err != nil {
		handleOperationError(w, h.log, "swap_statistics", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Swap statistics retrieved successfully", stats)
}

func (h *SwapHandler) GetSwap(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	sw, err := h.swaps.Get(r.Context(), p.UserID, mux.Vars(r)["id"])
	if err != nil {
		handleOperationError(w, h.log, "get_swap", err)
		return
	}
	respondWithSuccess(w, http.StatusOK, "Swap retrieved successfully", map[string]interface{}{
		"swap":           sw.View(),
		"balancesBefore": sw.BalancesBefore,
		"balancesAfter":  sw.BalancesAfter,
	})
}
