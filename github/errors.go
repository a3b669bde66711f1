package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is a non-2xx response from the GitHub REST API.
type APIError struct {
	StatusCode       int
	Message          string
	DocumentationURL string

	// Errors holds the messages of the validation errors a 422 lists
	// alongside Message.
	Errors []string

	// RateLimitRemaining is the X-RateLimit-Remaining header, or -1 when
	// the response did not carry it.
	RateLimitRemaining int

	// RateLimitReset is when the current rate window resets. Zero when
	// unknown.
	RateLimitReset time.Time

	// RetryAfter is the Retry-After header for secondary rate limits.
	RetryAfter time.Duration
}

func (err *APIError) Error() string {
	return fmt.Sprintf("github: HTTP %d: %s", err.StatusCode, err.Message)
}

func (err *APIError) rateLimited() bool {
	if err.StatusCode == http.StatusTooManyRequests {
		return true
	}
	if err.StatusCode != http.StatusForbidden {
		return false
	}
	return err.RateLimitRemaining == 0 || err.RetryAfter > 0 || isRateLimitMessage(err.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusNotFound
}

// IsConflict reports whether err is a 409 response, which the contents API
// returns when the supplied sha no longer matches the file.
func IsConflict(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusConflict
}

// IsMissingSHA reports whether err is the 422 the contents API returns when
// a create (no sha) targets a path that already holds a file.
func IsMissingSHA(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) || apiError.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	return strings.Contains(strings.ToLower(apiError.Message), "sha")
}

// IsAlreadyExists reports whether err is the 422 the repository API returns
// when the account already owns a repository with the requested name.
func IsAlreadyExists(err error) bool {
	var apiError *APIError
	if !errors.As(err, &apiError) || apiError.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	for _, message := range append([]string{apiError.Message}, apiError.Errors...) {
		if strings.Contains(strings.ToLower(message), "already exists") {
			return true
		}
	}
	return false
}

// IsRateLimited reports whether err is a rate limit response: 429, or 403
// accompanied by rate limit headers or wording.
func IsRateLimited(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.rateLimited()
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode == http.StatusUnauthorized
}

// IsServerError reports whether err is a 5xx response.
func IsServerError(err error) bool {
	var apiError *APIError
	return errors.As(err, &apiError) && apiError.StatusCode >= 500
}

func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "abuse detection")
}

func parseAPIError(statusCode int, header http.Header, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode, RateLimitRemaining: -1}

	var wire struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiError.Message = wire.Message
		apiError.DocumentationURL = wire.DocumentationURL
		for _, raw := range wire.Errors {
			if message := detailMessage(raw); message != "" {
				apiError.Errors = append(apiError.Errors, message)
			}
		}
	} else {
		apiError.Message = strings.TrimSpace(string(body))
	}

	if remaining, err := strconv.Atoi(header.Get("X-RateLimit-Remaining")); err == nil {
		apiError.RateLimitRemaining = remaining
	}
	if reset, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		apiError.RateLimitReset = time.Unix(reset, 0)
	}
	if seconds, err := strconv.Atoi(header.Get("Retry-After")); err == nil && seconds > 0 {
		apiError.RetryAfter = time.Duration(seconds) * time.Second
	}
	return apiError
}

// detailMessage reads one entry of a 422 errors array, which GitHub sends
// either as an object with a message or code or as a bare string.
func detailMessage(raw json.RawMessage) string {
	var detail struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if json.Unmarshal(raw, &detail) == nil {
		if detail.Message != "" {
			return detail.Message
		}
		return detail.Code
	}
	var message string
	if json.Unmarshal(raw, &message) == nil {
		return message
	}
	return ""
}
