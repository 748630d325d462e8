package handler

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope of every API reply.
type Response struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Data      interface{}       `json:"data,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func respondWithSuccess(w http.ResponseWriter, code int, message string, data interface{}) {
	respondWithJSON(w, code, Response{Success: true, Message: message, Data: data})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, Response{Message: message})
}

func respondWithValidation(w http.ResponseWriter, errs map[string]string) {
	respondWithJSON(w, http.StatusBadRequest, Response{Message: "Validation failed", Errors: errs})
}

func respondWithJSON(w http.ResponseWriter, code int, resp Response) {
	resp.Timestamp = time.Now().UTC()
	response, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success":false,"message":"Internal Server Error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
