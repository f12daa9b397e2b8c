package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CodeTooManyRequests is the error body code the API reports when a caller is
// being rate limited.
const CodeTooManyRequests = 429

// ErrRetriesExhausted is returned when a capped retry loop gives up on a
// rate-limited request.
var ErrRetriesExhausted = errors.New("rate limit retries exhausted")

// ErrorDetail is the decoded "error" object of an API error body:
//
//	{"error": {"code": 429, "message": "...", "status": "RESOURCE_EXHAUSTED"}}
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// APIError is returned for any API response with a status code of 400 or above.
// Body keeps the raw response body; Detail is decoded from it when the body is
// the structured error envelope.
type APIError struct {
	StatusCode int
	Body       []byte
	Detail     ErrorDetail
}

// NewAPIError builds an APIError and decodes the structured error envelope from
// body. A body that is not an error envelope leaves Detail zero-valued.
func NewAPIError(statusCode int, body []byte) *APIError {
	e := &APIError{StatusCode: statusCode, Body: body}

	var envelope struct {
		Error ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		e.Detail = envelope.Error
	}

	return e
}

func (e *APIError) Error() string {
	if e.Detail.Message != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Detail.Code, e.Detail.Status, e.Detail.Message)
	}
	if e.Detail.Code != 0 {
		return fmt.Sprintf("api error %d", e.Detail.Code)
	}
	return fmt.Sprintf("api error: http status %d", e.StatusCode)
}

// RateLimited reports whether the structured body carries the too-many-requests code.
func (e *APIError) RateLimited() bool {
	return e.Detail.Code == CodeTooManyRequests
}
