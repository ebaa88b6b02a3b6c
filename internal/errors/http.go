// Package errors defines the HTTP error envelope shared by all
// status-server endpoints.
package errors

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the HTTP error envelope.
const (
	CodeNotFound         = "NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeSnapshotPending  = "SNAPSHOT_PENDING"
	CodeRefreshThrottled = "REFRESH_THROTTLED"
	CodeInternal         = "INTERNAL"
)

// HTTPErrorResponse is the JSON envelope for all error responses.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError carries a stable machine code and a human message.
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteHTTPError writes the envelope with the given status code.
func WriteHTTPError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{
		Error: HTTPError{Code: code, Message: message},
	})
}
