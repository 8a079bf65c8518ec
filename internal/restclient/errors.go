package restclient

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// User-facing messages for the normalized error categories.
const (
	MessageConnectivity   = "Connection problem. Please check your network and try again."
	MessageRateLimited    = "Too many requests. Please wait a moment and try again."
	MessageSessionExpired = "Your session has expired. Please sign in again."
	MessageGeneric        = "Something went wrong. Please try again."
)

// APIError is the normalized shape every failed call resolves to.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Err        string `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

type serverErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// normalizeStatus maps an HTTP error response to an APIError. Message
// preference order: server message, server error string, status text,
// generic fallback. 429 always carries the fixed rate-limit message.
func normalizeStatus(statusCode int, body []byte) *APIError {
	var parsed serverErrorBody
	if len(body) > 0 {
		// A non-JSON body is fine; the fallbacks below cover it.
		_ = json.Unmarshal(body, &parsed)
	}

	apiError := &APIError{StatusCode: statusCode, Err: parsed.Error}
	if apiError.Err == "" {
		apiError.Err = http.StatusText(statusCode)
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		apiError.Message = MessageSessionExpired
	case statusCode == http.StatusTooManyRequests:
		apiError.Message = MessageRateLimited
	case parsed.Message != "":
		apiError.Message = parsed.Message
	case parsed.Error != "":
		apiError.Message = parsed.Error
	default:
		apiError.Message = MessageGeneric
	}
	return apiError
}

// normalizeTransport maps a transport failure (timeout, unreachable host)
// to the connectivity APIError. StatusCode zero marks the fault as
// transport-level.
func normalizeTransport(err error) *APIError {
	message := MessageConnectivity
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &APIError{StatusCode: 0, Message: message, Err: detail}
}
