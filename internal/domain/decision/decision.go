// Package decision defines the confidence-scored decisions Backline makes
// about incoming events, and the policy that routes them to automatic
// execution or human review.
package decision

import "time"

// Kind identifies the action a decision is about.
type Kind string

const (
	KindRestock   Kind = "restock"
	KindChatReply Kind = "chat_reply"
)

// Outcome is the terminal routing result for a decision. A later human
// resolution is recorded as a separate event, never by mutating the outcome.
type Outcome string

const (
	OutcomeAutoApproved Outcome = "auto_approved"
	OutcomeMonitored    Outcome = "monitored"
	OutcomeEscalated    Outcome = "escalated"
)

// ReasonCode explains one contribution to a decision's confidence or routing.
type ReasonCode string

const (
	// Return event reasons.
	ReasonNoHistory         ReasonCode = "no_history"
	ReasonAnomalousQuantity ReasonCode = "anomalous_quantity"
	ReasonCeilingExceeded   ReasonCode = "ceiling_exceeded"

	// Query event reasons.
	ReasonKeywordOverride ReasonCode = "keyword_override"
	ReasonUnknownIntent   ReasonCode = "unknown_intent"
	ReasonMissingSubject  ReasonCode = "missing_subject"
)

// HardOverride reports whether this reason forces escalation regardless of
// the numeric confidence.
func (r ReasonCode) HardOverride() bool {
	return r == ReasonCeilingExceeded || r == ReasonKeywordOverride
}

// Decision is the scored, routed result of exactly one event.
type Decision struct {
	ID         string       `json:"id"`
	SubjectID  string       `json:"subject_id"` // product id or query id
	Kind       Kind         `json:"kind"`
	Confidence float64      `json:"confidence"`
	Rationale  []ReasonCode `json:"rationale"`
	Outcome    Outcome      `json:"outcome"`
	CreatedAt  time.Time    `json:"created_at"`
}

// HardOverridden reports whether any rationale entry is a hard override.
func (d *Decision) HardOverridden() bool {
	for _, r := range d.Rationale {
		if r.HardOverride() {
			return true
		}
	}
	return false
}

// Assessment is a scorer's verdict before policy routing.
type Assessment struct {
	Confidence float64
	Rationale  []ReasonCode
}

// HardOverridden reports whether any rationale entry is a hard override.
func (a Assessment) HardOverridden() bool {
	for _, r := range a.Rationale {
		if r.HardOverride() {
			return true
		}
	}
	return false
}
