package handler

import (
	"errors"
	"net/http"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/usecase"
)

// statusFor maps a usecase error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrWalletNotFound),
		errors.Is(err, usecase.ErrTransactionNotFound),
		errors.Is(err, usecase.ErrSwapNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrWalletExists):
		return http.StatusConflict
	case errors.Is(err, usecase.ErrInvalidAmount),
		errors.Is(err, usecase.ErrUnsupportedCurrency),
		errors.Is(err, usecase.ErrSameCurrency),
		errors.Is(err, usecase.ErrAddressRequired),
		errors.Is(err, usecase.ErrDepositAddressNotFound),
		errors.Is(err, usecase.ErrInvalidFilter),
		errors.Is(err, usecase.ErrInsufficientFunds),
		errors.Is(err, usecase.ErrWrongTransactionType),
		errors.Is(err, usecase.ErrAlreadyProcessed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func handleOperationError(w http.ResponseWriter, log logger.Logger, op string, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("Failed to process operation",
			logger.StringField("operation", op),
			logger.ErrorField("error", err))
		respondWithError(w, code, "Failed to process operation")
		return
	}

	log.Warn("Operation refused",
		logger.StringField("operation", op),
		logger.IntField("status", code),
		logger.ErrorField("error", err))
	respondWithError(w, code, err.Error())
}
