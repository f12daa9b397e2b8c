package model

import (
	"net/http"
	"time"
)

// Cassette is a named, ordered list of recorded HTTP interactions.
type Cassette struct {
	Name         string        `json:"name"`
	Interactions []Interaction `json:"interactions"`
}

// Interaction is one recorded request/response pair.
type Interaction struct {
	ID         string           `json:"id"`
	Request    RecordedRequest  `json:"request"`
	Response   RecordedResponse `json:"response"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// RecordedRequest is the persisted form of an outbound request.
type RecordedRequest struct {
	Method  string      `json:"method"`
	URI     string      `json:"uri"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body"`
}

// RecordedResponse is the persisted form of a received response. Body is stored
// decoded when the recorder decodes compressed responses.
type RecordedResponse struct {
	StatusCode int         `json:"status_code"`
	Status     string      `json:"status"`
	Headers    http.Header `json:"headers"`
	Body       string      `json:"body"`
}
