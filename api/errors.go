package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is used as the response body for failed HTTP requests. It is also
// the error returned by api.Client methods when the request fails.
type Error struct {
	// Code is the HTTP status of the response.
	Code int32 `json:"code"`
	// Reason is a machine readable code for failures of the token pipeline,
	// for example acl_reject or token_expired.
	Reason string `json:"reason,omitempty"`
	// Message contains the full text of the failure as a single string.
	Message string `json:"message"`
	// FieldErrors contains a structured representation of any validation errors.
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

func (e Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %v", e.Code, strings.ToLower(http.StatusText(int(e.Code))))
	}
	return e.Message
}

type FieldError struct {
	FieldName string   `json:"fieldName"`
	Errors    []string `json:"errors"`
}

// ErrorStatusCode returns the HTTP status code from an error returned by a
// Client method, or 0 if the error is not an Error.
func ErrorStatusCode(err error) int32 {
	var apiError Error
	if errors.As(err, &apiError) {
		return apiError.Code
	}
	return 0
}

// ErrorReason returns the machine readable reason of an error returned by a
// Client method.
func ErrorReason(err error) string {
	var apiError Error
	if errors.As(err, &apiError) {
		return apiError.Reason
	}
	return ""
}
