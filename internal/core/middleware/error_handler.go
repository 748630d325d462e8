package middleware

import (
	"net/http"

	"github.com/Nzyazin/cryptovault/internal/core/logger"
)

type ErrorHandler struct {
	handler http.Handler
	log     logger.Logger
}

// WithErrorHandler is the outermost guard: it turns a panic that escaped every
// other layer into a logged 500.
func WithErrorHandler(log logger.Logger) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return &ErrorHandler{handler: h, log: log}
	}
}

func (eh *ErrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if err := recover(); err != nil {
			if err == http.ErrAbortHandler {
				panic(err)
			}
			eh.log.Error("request processing failed",
				logger.StringField("method", r.Method),
				logger.StringField("path", r.URL.Path),
				logger.AnyField("error", err),
			)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
	}()

	eh.handler.ServeHTTP(w, r)
}
