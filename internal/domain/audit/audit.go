// Package audit defines the append-only audit trail. Every decision and
// every human resolution writes exactly one record; records are never
// mutated or deleted, and the full log replays to the final queue state.
package audit

import (
	"time"

	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/google/uuid"
)

// Action identifies what a record captures.
type Action string

const (
	ActionDecision        Action = "decision"         // a decision was made and (if approved) executed
	ActionExecutionFailed Action = "execution_failed" // the action could not be produced
	ActionResolution      Action = "resolution"       // a human resolved a review item
)

// Record is one immutable audit entry: a snapshot of the decision and, for
// resolutions, the review item at the time of writing.
type Record struct {
	ID           string                `json:"id"`
	Action       Action                `json:"action"`
	DecisionID   string                `json:"decision_id"`
	SubjectID    string                `json:"subject_id"`
	Kind         decision.Kind         `json:"kind"`
	Outcome      decision.Outcome      `json:"outcome"`
	Confidence   float64               `json:"confidence"`
	Rationale    []decision.ReasonCode `json:"rationale,omitempty"`
	ReviewID     string                `json:"review_id,omitempty"`
	ReviewStatus review.Status         `json:"review_status,omitempty"`
	Reviewer     string                `json:"reviewer,omitempty"`
	Details      string                `json:"details,omitempty"`
	WrittenAt    time.Time             `json:"written_at"`
}

// NewDecisionRecord snapshots a freshly routed decision. The details string
// carries the produced action (restock request id, reply reference) or the
// fallback taken.
func NewDecisionRecord(d decision.Decision, details string) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Action:     ActionDecision,
		DecisionID: d.ID,
		SubjectID:  d.SubjectID,
		Kind:       d.Kind,
		Outcome:    d.Outcome,
		Confidence: d.Confidence,
		Rationale:  d.Rationale,
		Details:    details,
		WrittenAt:  time.Now().UTC(),
	}
}

// NewFailureRecord captures a decision whose action could not be produced.
func NewFailureRecord(d decision.Decision, details string) *Record {
	r := NewDecisionRecord(d, details)
	r.Action = ActionExecutionFailed
	return r
}

// NewResolutionRecord snapshots a review item at resolution time.
func NewResolutionRecord(item *review.Item, details string) *Record {
	d := item.Decision
	return &Record{
		ID:           uuid.NewString(),
		Action:       ActionResolution,
		DecisionID:   d.ID,
		SubjectID:    d.SubjectID,
		Kind:         d.Kind,
		Outcome:      d.Outcome,
		Confidence:   d.Confidence,
		Rationale:    d.Rationale,
		ReviewID:     item.ID,
		ReviewStatus: item.Status,
		Reviewer:     item.Reviewer,
		Details:      details,
		WrittenAt:    time.Now().UTC(),
	}
}

// Filter controls which audit records are returned from a listing.
type Filter struct {
	SubjectID  string        `json:"subject_id,omitempty"`
	DecisionID string        `json:"decision_id,omitempty"`
	Kind       decision.Kind `json:"kind,omitempty"`
	Action     Action        `json:"action,omitempty"`
	After      *time.Time    `json:"after,omitempty"`
	Before     *time.Time    `json:"before,omitempty"`
}
