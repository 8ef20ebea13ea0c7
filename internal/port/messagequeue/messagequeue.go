// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error
}

// Subject constants for the notification hook. External reviewer tools
// subscribe to these; the core never depends on a consumer being present.
const (
	SubjectDecisionMade   = "decisions.made"
	SubjectReviewEnqueued = "reviews.enqueued"
	SubjectReviewResolved = "reviews.resolved"
)

// DecisionMadePayload is the schema for decisions.made messages.
type DecisionMadePayload struct {
	DecisionID string  `json:"decision_id"`
	SubjectID  string  `json:"subject_id"`
	Kind       string  `json:"kind"`
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
}

// ReviewEnqueuedPayload is the schema for reviews.enqueued messages.
type ReviewEnqueuedPayload struct {
	ReviewID   string `json:"review_id"`
	DecisionID string `json:"decision_id"`
	SubjectID  string `json:"subject_id"`
	Kind       string `json:"kind"`
}

// ReviewResolvedPayload is the schema for reviews.resolved messages.
type ReviewResolvedPayload struct {
	ReviewID string `json:"review_id"`
	Status   string `json:"status"`
	Reviewer string `json:"reviewer"`
}
