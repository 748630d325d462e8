package middleware

import (
	"encoding/json"
	"net/http"
	"time"
)

type errorBody struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorBody{
		Success:   false,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}
