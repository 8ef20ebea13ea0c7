// Package event defines the normalized input events Backline decides on.
// Events are validated at ingestion and immutable once observed.
package event

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a malformed input event. No decision is created
// for an event that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// ReturnEvent is a single observed product return.
type ReturnEvent struct {
	ProductID      string    `json:"product_id"`
	ReturnQuantity int       `json:"return_quantity"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Validate checks the event schema. OccurredAt defaults to now when unset.
func (e *ReturnEvent) Validate() error {
	if strings.TrimSpace(e.ProductID) == "" {
		return &ValidationError{Field: "product_id", Reason: "is required"}
	}
	if e.ReturnQuantity < 0 {
		return &ValidationError{Field: "return_quantity", Reason: "must be >= 0"}
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return nil
}

// QueryEvent is a single natural-language order-status query.
type QueryEvent struct {
	QueryID    string    `json:"query_id"`
	RawText    string    `json:"raw_text"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Validate checks the event schema. OccurredAt defaults to now when unset.
func (e *QueryEvent) Validate() error {
	if strings.TrimSpace(e.QueryID) == "" {
		return &ValidationError{Field: "query_id", Reason: "is required"}
	}
	if strings.TrimSpace(e.RawText) == "" {
		return &ValidationError{Field: "raw_text", Reason: "is required"}
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return nil
}
