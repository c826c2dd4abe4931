package billing

import (
	"errors"
	"fmt"
)

// APIError is a well-formed response the billing API marked as failed.
type APIError struct {
	Message string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billing api error (code %d)", e.Code)
	}
	return fmt.Sprintf("billing api error (code %d): %s", e.Code, e.Message)
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	Body       string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("billing api returned status %d: %s", e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err means the token was rejected.
func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 401 || httpErr.StatusCode == 403
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 401 || apiErr.Code == 403
	}
	return false
}
