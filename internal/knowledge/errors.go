package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category classifies a failed API call.
type Category string

const (
	CategoryBadRequest         Category = "bad_request"
	CategoryUnauthorized       Category = "unauthorized"
	CategoryForbidden          Category = "forbidden"
	CategoryNotFound           Category = "not_found"
	CategoryConflict           Category = "conflict"
	CategoryValidation         Category = "validation"
	CategoryRateLimited        Category = "rate_limited"
	CategoryServerError        Category = "server_error"
	CategoryServiceUnavailable Category = "service_unavailable"
	CategoryNetwork            Category = "network"
	CategoryTimeout            Category = "timeout"
	CategoryUnknown            Category = "unknown"
)

// ErrNotFound matches any APIError with a 404 status via errors.Is.
var ErrNotFound = errors.New("knowledge api: not found")

// APIError is returned for every failed call. Body holds the decoded JSON
// error body when the server sent one.
type APIError struct {
	Status   int
	Category Category
	Method   string
	Endpoint string
	Message  string
	Body     map[string]any
	Err      error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s %s: %s (%d): %s", e.Method, e.Endpoint, e.Category, e.Status, msg)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.Endpoint, e.Category, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Category == CategoryNotFound
}

// IsRetryable reports whether the call may succeed if repeated. Client
// errors are never retried.
func (e *APIError) IsRetryable() bool {
	switch e.Category {
	case CategoryServerError, CategoryNetwork, CategoryTimeout:
		return true
	}
	return false
}

// categoryForStatus maps an HTTP status to a Category.
func categoryForStatus(status int) Category {
	switch {
	case status == http.StatusBadRequest:
		return CategoryBadRequest
	case status == http.StatusUnauthorized:
		return CategoryUnauthorized
	case status == http.StatusForbidden:
		return CategoryForbidden
	case status == http.StatusNotFound:
		return CategoryNotFound
	case status == http.StatusConflict:
		return CategoryConflict
	case status == http.StatusUnprocessableEntity:
		return CategoryValidation
	case status == http.StatusTooManyRequests:
		return CategoryRateLimited
	case status >= 500:
		return CategoryServerError
	case status >= 400:
		return CategoryBadRequest
	}
	return CategoryUnknown
}

// newStatusError builds an APIError from an error response. The message is
// taken from common JSON error fields when present.
func newStatusError(method, endpoint string, status int, body []byte) *APIError {
	apiErr := &APIError{
		Status:   status,
		Category: categoryForStatus(status),
		Method:   method,
		Endpoint: endpoint,
		Message:  http.StatusText(status),
	}

	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		apiErr.Body = decoded
		for _, key := range []string{"message", "error", "detail"} {
			if msg, ok := decoded[key].(string); ok && msg != "" {
				apiErr.Message = msg
				break
			}
		}
	} else if len(body) > 0 && len(body) < 512 {
		apiErr.Message = string(body)
	}
	return apiErr
}

// newTransportError classifies an error from the HTTP round trip.
func newTransportError(method, endpoint string, err error) *APIError {
	category := CategoryNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		category = CategoryTimeout
	}
	return &APIError{Category: category, Method: method, Endpoint: endpoint, Err: err}
}
