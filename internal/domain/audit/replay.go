package audit

import (
	"sort"
	"time"

	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/review"
)

// ReplayedDecision is a decision's final state reconstructed from the log.
type ReplayedDecision struct {
	DecisionID   string
	SubjectID    string
	Kind         decision.Kind
	Outcome      decision.Outcome
	Failed       bool
	ReviewID     string
	ReviewStatus review.Status
	DecidedAt    time.Time
	ResolvedAt   *time.Time
}

// Replay folds an audit log into the final state of every decision it
// mentions: its outcome, whether execution failed, and the final review
// status for escalated decisions. The records may arrive in any order;
// replay sorts by write time first.
func Replay(records []Record) map[string]*ReplayedDecision {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WrittenAt.Before(sorted[j].WrittenAt)
	})

	out := make(map[string]*ReplayedDecision)
	for i := range sorted {
		r := &sorted[i]
		d, ok := out[r.DecisionID]
		if !ok {
			d = &ReplayedDecision{DecisionID: r.DecisionID}
			out[r.DecisionID] = d
		}

		switch r.Action {
		case ActionDecision, ActionExecutionFailed:
			d.SubjectID = r.SubjectID
			d.Kind = r.Kind
			d.Outcome = r.Outcome
			d.Failed = r.Action == ActionExecutionFailed
			d.DecidedAt = r.WrittenAt
			if r.Outcome == decision.OutcomeEscalated {
				d.ReviewStatus = review.StatusPending
			}
			if r.ReviewID != "" {
				d.ReviewID = r.ReviewID
			}
		case ActionResolution:
			d.ReviewID = r.ReviewID
			d.ReviewStatus = r.ReviewStatus
			at := r.WrittenAt
			d.ResolvedAt = &at
		}
	}
	return out
}
