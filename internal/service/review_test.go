package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/backline-io/backline/internal/domain"
	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/backline-io/backline/internal/port/messagequeue"
)

type reviewFixture struct {
	store   *mockStore
	audit   *mockAudit
	queue   *mockQueue
	hub     *mockBroadcaster
	metrics *mockMetrics
	svc     *ReviewService
}

func newReviewFixture(store *mockStore) *reviewFixture {
	f := &reviewFixture{
		store:   store,
		audit:   &mockAudit{},
		queue:   &mockQueue{},
		hub:     &mockBroadcaster{},
		metrics: &mockMetrics{},
	}
	executor := NewExecutorService(store, 1.0)
	f.svc = NewReviewService(store, f.audit, executor, f.queue, f.hub, f.metrics, testLogger())
	return f
}

func escalatedDecision(subjectID string, kind decision.Kind) decision.Decision {
	a := decision.Assessment{Confidence: 0.2, Rationale: []decision.ReasonCode{decision.ReasonCeilingExceeded}}
	return decision.New(subjectID, kind, a, decision.OutcomeEscalated)
}

func TestEnqueueCreatesPendingItem(t *testing.T) {
	f := newReviewFixture(&mockStore{})

	item, created, err := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected a new item")
	}
	if item.Status != review.StatusPending {
		t.Errorf("expected pending, got %s", item.Status)
	}
	if item.RequestedQuantity != 25 {
		t.Errorf("expected requested quantity 25, got %d", item.RequestedQuantity)
	}
	if len(f.queue.published) != 1 || f.queue.published[0].subject != messagequeue.SubjectReviewEnqueued {
		t.Errorf("expected reviews.enqueued publish, got %+v", f.queue.published)
	}
	if len(f.hub.events) != 1 || f.hub.events[0].eventType != "review.enqueued" {
		t.Errorf("expected review.enqueued broadcast, got %+v", f.hub.events)
	}
}

func TestEnqueueDuplicateReturnsExisting(t *testing.T) {
	f := newReviewFixture(&mockStore{})

	first, _, err := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, created, err := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created {
		t.Error("expected created=false for duplicate")
	}
	if second.ID != first.ID {
		t.Errorf("expected existing item %s, got %s", first.ID, second.ID)
	}
	if len(f.store.reviews) != 1 {
		t.Errorf("expected 1 stored item, got %d", len(f.store.reviews))
	}
	// No second notification for a suppressed duplicate.
	if len(f.queue.published) != 1 {
		t.Errorf("expected 1 publish, got %d", len(f.queue.published))
	}
}

func TestResolveApprovedExecutesRestock(t *testing.T) {
	f := newReviewFixture(&mockStore{})
	item, _, _ := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)

	resolved, produced, err := f.svc.Resolve(context.Background(), item.ID, &review.ResolveRequest{
		Verdict:  review.StatusApproved,
		Reviewer: "maria",
		Note:     "seasonal spike, quantity is fine",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resolved.Status != review.StatusApproved {
		t.Errorf("expected approved, got %s", resolved.Status)
	}
	if produced == nil || produced.Quantity != 25 {
		t.Fatalf("expected restock of 25, got %+v", produced)
	}
	if len(f.audit.records) != 1 {
		t.Fatalf("expected exactly 1 resolution audit record, got %d", len(f.audit.records))
	}
	last := f.audit.records[0]
	if last.Action != audit.ActionResolution || last.Reviewer != "maria" {
		t.Errorf("unexpected resolution record: %+v", last)
	}
	if !strings.Contains(last.Details, produced.ID) {
		t.Errorf("expected restock id in resolution details, got %q", last.Details)
	}
	if len(f.metrics.resolutions) != 1 || f.metrics.resolutions[0] != "approved" {
		t.Errorf("expected approved resolution metric, got %v", f.metrics.resolutions)
	}
}

func TestResolveModifiedUsesReviewerQuantity(t *testing.T) {
	f := newReviewFixture(&mockStore{})
	item, _, _ := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)

	qty := 10
	_, produced, err := f.svc.Resolve(context.Background(), item.ID, &review.ResolveRequest{
		Verdict:          review.StatusModified,
		Reviewer:         "maria",
		ModifiedQuantity: &qty,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if produced == nil || produced.Quantity != 10 {
		t.Fatalf("expected restock of 10, got %+v", produced)
	}
}

func TestResolveRejectedTakesNoAction(t *testing.T) {
	f := newReviewFixture(&mockStore{})
	item, _, _ := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)

	_, produced, err := f.svc.Resolve(context.Background(), item.ID, &review.ResolveRequest{
		Verdict:  review.StatusRejected,
		Reviewer: "maria",
		Note:     "fraudulent return pattern",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if produced != nil {
		t.Errorf("expected no restock, got %+v", produced)
	}
	if len(f.store.restocks) != 0 {
		t.Errorf("expected no persisted restocks, got %d", len(f.store.restocks))
	}
}

func TestResolveIsOneWay(t *testing.T) {
	f := newReviewFixture(&mockStore{})
	item, _, _ := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)

	if _, _, err := f.svc.Resolve(context.Background(), item.ID, &review.ResolveRequest{
		Verdict: review.StatusRejected, Reviewer: "maria",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err := f.svc.Resolve(context.Background(), item.ID, &review.ResolveRequest{
		Verdict: review.StatusApproved, Reviewer: "omar",
	})
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	if len(f.metrics.resolutions) != 1 {
		t.Errorf("expected 1 resolution metric, got %d", len(f.metrics.resolutions))
	}
}

func TestResolveValidation(t *testing.T) {
	f := newReviewFixture(&mockStore{})
	item, _, _ := f.svc.Enqueue(context.Background(), escalatedDecision("A101", decision.KindRestock), 25)

	tests := []struct {
		name string
		req  review.ResolveRequest
		want error
	}{
		{"missing reviewer", review.ResolveRequest{Verdict: review.StatusApproved}, review.ErrReviewerRequired},
		{"bad verdict", review.ResolveRequest{Verdict: "pending", Reviewer: "maria"}, review.ErrInvalidVerdict},
		{"modified without quantity", review.ResolveRequest{Verdict: review.StatusModified, Reviewer: "maria"}, review.ErrQuantityRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := f.svc.Resolve(context.Background(), item.ID, &tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestResolveUnknownItem(t *testing.T) {
	f := newReviewFixture(&mockStore{})

	_, _, err := f.svc.Resolve(context.Background(), "nope", &review.ResolveRequest{
		Verdict: review.StatusApproved, Reviewer: "maria",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newReviewFixture(&mockStore{})
	ctx := context.Background()

	a, _, _ := f.svc.Enqueue(ctx, escalatedDecision("A101", decision.KindRestock), 25)
	b, _, _ := f.svc.Enqueue(ctx, escalatedDecision("B202", decision.KindRestock), 30)
	if _, _, err := f.svc.Enqueue(ctx, escalatedDecision("C303", decision.KindRestock), 40); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, err := f.svc.Resolve(ctx, a.ID, &review.ResolveRequest{Verdict: review.StatusApproved, Reviewer: "maria"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, err := f.svc.Resolve(ctx, b.ID, &review.ResolveRequest{Verdict: review.StatusRejected, Reviewer: "omar"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.PendingCount != 1 || stats.ApprovedCount != 1 || stats.RejectedCount != 1 {
		t.Errorf("unexpected counts: %+v", stats)
	}
	if stats.ApprovalRate != 0.5 {
		t.Errorf("expected approval rate 0.5, got %f", stats.ApprovalRate)
	}
}
