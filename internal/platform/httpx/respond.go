// Package httpx provides JSON response utilities for the HTTP layer.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Result is the uniform envelope returned by every API endpoint.
type Result struct {
	Success   bool   `json:"success"`
	Data      any    `json:"data,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK sends a successful result envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Result{Success: true, Data: data})
}

// Fail sends a failed result envelope with an error kind and message.
func Fail(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, Result{Success: false, ErrorKind: kind, Message: message})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
