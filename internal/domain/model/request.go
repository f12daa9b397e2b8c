package model

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes a single API call. Path is either an absolute URL or a path
// relative to the client's Sheets base URL.
type Request struct {
	Method string
	Path   string
	Params url.Values
	Body   any
	Header http.Header
}

// Response is a fully buffered API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}
