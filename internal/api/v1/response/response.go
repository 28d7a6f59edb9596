// Package response writes JSON bodies and the error envelope shared by
// handlers and middleware.
package response

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Error   int      `json:"error"`
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// JSON writes v with the given status.
func JSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: status, Message: message})
}

// ValidationError writes a 400 listing each failed field.
func ValidationError(w http.ResponseWriter, message string, errs []string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: http.StatusBadRequest, Message: message, Errors: errs})
}
