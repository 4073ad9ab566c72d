package graph

import (
	"errors"
	"fmt"
)

type APIError struct {
	Type         string `json:"type"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode"`
	Message      string `json:"message"`
	FBTraceID    string `json:"fbtrace_id"`
	Retryable    bool   `json:"retryable"`
	StatusCode   int    `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf(
		"graph api error type=%s code=%d subcode=%d fbtrace_id=%s: %s",
		e.Type,
		e.Code,
		e.ErrorSubcode,
		e.FBTraceID,
		e.Message,
	)
}

// IsAuth reports an expired, revoked or otherwise unusable access token.
func (e *APIError) IsAuth() bool {
	if e == nil {
		return false
	}
	return e.Code == 190 || e.Code == 102 || e.StatusCode == 401
}

type TransientError struct {
	Message    string
	StatusCode int
}

func (e *TransientError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable
	}
	var transient *TransientError
	return errors.As(err, &transient)
}
