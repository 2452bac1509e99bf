package api

import (
	"encoding/json"
	"net/http"
)

// Error codes surfaced at the accept boundary.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeInvalidJSON            = "INVALID_JSON"
	CodeUnsupportedContentType = "UNSUPPORTED_CONTENT_TYPE"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeServiceUnavailable     = "SERVICE_UNAVAILABLE"
)

// Error codes surfaced at the delivery boundary.
const (
	CodeInvalidEnvelope   = "INVALID_ENVELOPE"
	CodeMissingMessage    = "MISSING_MESSAGE"
	CodeMissingAttributes = "MISSING_ATTRIBUTES"
	CodeInvalidBase64     = "INVALID_BASE64"
	CodeProcessingError   = "PROCESSING_ERROR"
)

// ErrorDetail is the machine-readable error payload.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response is the standardized envelope for every endpoint: exactly one of
// Data and Error is set.
type Response struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data"`
	Error   *ErrorDetail `json:"error"`
}

// WriteSuccess writes a success response with the given payload.
func WriteSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(w, statusCode, Response{Success: true, Data: data})
}

// WriteError writes a structured error response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, Response{Success: false, Error: &ErrorDetail{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, statusCode int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
