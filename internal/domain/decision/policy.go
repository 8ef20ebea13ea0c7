package decision

import (
	"time"

	"github.com/google/uuid"
)

// Policy thresholds an assessment into an outcome. Thresholds are
// configuration; hard overrides win over any numeric confidence.
type Policy struct {
	highThreshold   float64
	mediumThreshold float64
}

// NewPolicy creates a Policy with the given threshold band.
// Callers validate high >= medium at config load.
func NewPolicy(highThreshold, mediumThreshold float64) Policy {
	return Policy{highThreshold: highThreshold, mediumThreshold: mediumThreshold}
}

// Decide routes an assessment:
//
//	hard override           -> Escalated, at any confidence
//	confidence >= high      -> AutoApproved
//	medium <= confidence    -> Monitored (executes, flagged for audit sampling)
//	otherwise               -> Escalated
func (p Policy) Decide(a Assessment) Outcome {
	if a.HardOverridden() {
		return OutcomeEscalated
	}
	switch {
	case a.Confidence >= p.highThreshold:
		return OutcomeAutoApproved
	case a.Confidence >= p.mediumThreshold:
		return OutcomeMonitored
	default:
		return OutcomeEscalated
	}
}

// New builds a Decision from an assessment and its routing outcome.
func New(subjectID string, kind Kind, a Assessment, outcome Outcome) Decision {
	return Decision{
		ID:         uuid.NewString(),
		SubjectID:  subjectID,
		Kind:       kind,
		Confidence: a.Confidence,
		Rationale:  a.Rationale,
		Outcome:    outcome,
		CreatedAt:  time.Now().UTC(),
	}
}
