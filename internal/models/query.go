package models

import (
	"fmt"
	"strings"
)

// QueryRequest is the body of a question submitted to the assistant.
type QueryRequest struct {
	Question string `json:"question"`
}

// Validate rejects missing or blank questions.
func (q *QueryRequest) Validate() error {
	if strings.TrimSpace(q.Question) == "" {
		return &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	return nil
}

// QueryResult is the answer to a question. Sources is never nil so it
// serializes as an empty list.
type QueryResult struct {
	Question string   `json:"question"`
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
	Cached   bool     `json:"-"`
}

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
