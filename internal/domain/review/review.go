// Package review defines the human review queue for escalated decisions.
package review

import (
	"errors"
	"strings"
	"time"

	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/google/uuid"
)

// Status represents the lifecycle state of a review item.
// The only legal transitions are Pending -> {Approved, Rejected, Modified};
// resolved items never change again.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusModified Status = "modified"
)

// Terminal reports whether the status is a resolution state.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusModified
}

// Item is the queued, human-resolvable representation of an escalated
// decision. Items are never deleted; resolved items remain for audit.
type Item struct {
	ID       string            `json:"id"`
	Decision decision.Decision `json:"decision"`
	Status   Status            `json:"status"`

	// RequestedQuantity is the quantity the blocked action asked for,
	// captured at enqueue time so a later approval can still execute it.
	// Zero for decisions that carry no quantity (chat replies).
	RequestedQuantity int        `json:"requested_quantity,omitempty"`
	Reviewer          string     `json:"reviewer,omitempty"`
	ResolutionNote    string     `json:"resolution_note,omitempty"`
	ModifiedQuantity  *int       `json:"modified_quantity,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
}

// NewItem creates a pending item for an escalated decision.
func NewItem(d decision.Decision, requestedQuantity int) *Item {
	return &Item{
		ID:                uuid.NewString(),
		Decision:          d,
		Status:            StatusPending,
		RequestedQuantity: requestedQuantity,
		CreatedAt:         time.Now().UTC(),
	}
}

var (
	ErrReviewerRequired = errors.New("reviewer is required")
	ErrInvalidVerdict   = errors.New("verdict must be approved, rejected, or modified")
	ErrQuantityRequired = errors.New("modified_quantity must be >= 1 for a modified verdict")
)

// ResolveRequest holds the fields for resolving a pending item.
type ResolveRequest struct {
	Verdict          Status `json:"verdict"`
	Reviewer         string `json:"reviewer"`
	Note             string `json:"note,omitempty"`
	ModifiedQuantity *int   `json:"modified_quantity,omitempty"`
}

// Validate checks the resolve request for correctness.
func (r *ResolveRequest) Validate() error {
	if strings.TrimSpace(r.Reviewer) == "" {
		return ErrReviewerRequired
	}
	if !r.Verdict.Terminal() {
		return ErrInvalidVerdict
	}
	if r.Verdict == StatusModified && (r.ModifiedQuantity == nil || *r.ModifiedQuantity < 1) {
		return ErrQuantityRequired
	}
	return nil
}

// Resolve applies a validated resolution to a pending item in place.
// Callers enforce that the item is still pending.
func (i *Item) Resolve(req *ResolveRequest, at time.Time) {
	i.Status = req.Verdict
	i.Reviewer = req.Reviewer
	i.ResolutionNote = req.Note
	i.ModifiedQuantity = req.ModifiedQuantity
	i.ResolvedAt = &at
}

// ExecutedQuantity returns the restock quantity a resolution authorized:
// the reviewer's modified quantity when present, otherwise the quantity
// captured at enqueue time.
func (i *Item) ExecutedQuantity() int {
	if i.Status == StatusModified && i.ModifiedQuantity != nil {
		return *i.ModifiedQuantity
	}
	return i.RequestedQuantity
}

// Stats aggregates the queue state. Pure data, no side effects.
type Stats struct {
	PendingCount             int           `json:"pending_count"`
	ApprovedCount            int           `json:"approved_count"`
	RejectedCount            int           `json:"rejected_count"`
	ModifiedCount            int           `json:"modified_count"`
	ApprovalRate             float64       `json:"approval_rate"` // (approved+modified) / resolved
	AverageResolutionLatency time.Duration `json:"average_resolution_latency"`
}

// Aggregate computes Stats over a set of items.
func Aggregate(items []Item) Stats {
	var st Stats
	var resolved int
	var totalLatency time.Duration

	for i := range items {
		it := &items[i]
		switch it.Status {
		case StatusPending:
			st.PendingCount++
			continue
		case StatusApproved:
			st.ApprovedCount++
		case StatusRejected:
			st.RejectedCount++
		case StatusModified:
			st.ModifiedCount++
		}
		resolved++
		if it.ResolvedAt != nil {
			totalLatency += it.ResolvedAt.Sub(it.CreatedAt)
		}
	}

	if resolved > 0 {
		st.ApprovalRate = float64(st.ApprovedCount+st.ModifiedCount) / float64(resolved)
		st.AverageResolutionLatency = totalLatency / time.Duration(resolved)
	}
	return st
}
