package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
	"github.com/Nzyazin/cryptovault/internal/core/middleware"
	"github.com/Nzyazin/cryptovault/internal/core/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var maxAmount = decimal.NewFromInt(1_000_000_000)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// decimals are validated through their string form
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("crypto", func(fl validator.FieldLevel) bool {
		_, err := models.ParseCurrency(fl.Field().String())
		return err == nil
	})

	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return d.IsPositive() && d.Equal(d.Round(2)) && d.LessThanOrEqual(maxAmount)
	})

	return v
}

type DepositRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"money"`
	Cryptocurrency string          `json:"cryptocurrency" validate:"required,crypto"`
	TxHash         string          `json:"txHash" validate:"omitempty,max=128"`
}

type WithdrawalRequest struct {
	Amount         decimal.Decimal `json:"amount" validate:"money"`
	Cryptocurrency string          `json:"cryptocurrency" validate:"required,crypto"`
	ToAddress      string          `json:"toAddress" validate:"required,max=128"`
}

type SwapRequest struct {
	FromCrypto string          `json:"fromCrypto" validate:"required,crypto"`
	ToCrypto   string          `json:"toCrypto" validate:"required,crypto,nefield=FromCrypto"`
	Amount     decimal.Decimal `json:"amount" validate:"money"`
}

type FundRequest struct {
	Cryptocurrency string          `json:"cryptocurrency" validate:"required,crypto"`
	Amount         decimal.Decimal `json:"amount" validate:"money"`
}

type OpenWalletRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type AddressRequest struct {
	Cryptocurrency string `json:"cryptocurrency" validate:"required,crypto"`
	Address        string `json:"address" validate:"required,max=256"`
	Network        string `json:"network" validate:"omitempty,max=64"`
}

type DecisionRequest struct {
	AdminNotes string `json:"adminNotes" validate:"omitempty,max=500"`
}

var validationMessages = map[string]string{
	"required": "is required",
	"crypto":   "is not a supported cryptocurrency",
	"money":    "must be a positive amount with at most 2 decimal places",
	"uuid":     "must be a valid id",
	"nefield":  "must differ from fromCrypto",
	"max":      "is too long",
}

// decodeRequest reads and validates a JSON body. With optional set an empty
// body is accepted. It writes the 400 itself and reports false on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, log logger.Logger, dst interface{}, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !(optional && errors.Is(err, io.EOF)) {
		log.Warn("Failed to decode request body", logger.ErrorField("error", err))
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			out := make(map[string]string, len(errs))
			for _, e := range errs {
				msg, ok := validationMessages[e.Tag()]
				if !ok {
					msg = "is invalid"
				}
				out[e.Field()] = e.Field() + " " + msg
			}
			respondWithValidation(w, out)
			return false
		}
		respondWithError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

func principal(w http.ResponseWriter, r *http.Request) (middleware.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Not authorized")
	}
	return p, ok
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}
