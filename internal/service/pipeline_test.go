package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/domain/order"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/backline-io/backline/internal/port/messagequeue"
)

type pipelineFixture struct {
	store    *mockStore
	audit    *mockAudit
	queue    *mockQueue
	hub      *mockBroadcaster
	metrics  *mockMetrics
	pipeline *PipelineService
	reviews  *ReviewService
}

func newPipelineFixture(store *mockStore) *pipelineFixture {
	f := &pipelineFixture{
		store:   store,
		audit:   &mockAudit{},
		queue:   &mockQueue{},
		hub:     &mockBroadcaster{},
		metrics: &mockMetrics{},
	}
	logger := testLogger()
	executor := NewExecutorService(store, 1.0)
	chatSvc := NewChatService(store, nil, logger)
	f.reviews = NewReviewService(store, f.audit, executor, f.queue, f.hub, f.metrics, logger)
	scorer := decision.NewRuleScorer(20, 3.0, []string{"urgent", "complaint", "emergency"})
	f.pipeline = NewPipelineService(store, f.audit, nil, 0, scorer, decision.NewPolicy(0.7, 0.4),
		executor, chatSvc, f.reviews, f.queue, f.hub, f.metrics, logger)
	return f
}

func TestProcessReturnAutoApproved(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 4, samples: 10}}}
	f := newPipelineFixture(store)

	res, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decision.Outcome != decision.OutcomeAutoApproved {
		t.Fatalf("expected auto_approved, got %s", res.Decision.Outcome)
	}
	if res.Restock == nil || res.Restock.Quantity != 5 {
		t.Fatalf("expected restock of 5, got %+v", res.Restock)
	}
	if len(store.restocks) != 1 {
		t.Errorf("expected 1 persisted restock, got %d", len(store.restocks))
	}
	if len(f.audit.records) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(f.audit.records))
	}
	if f.audit.records[0].Action != audit.ActionDecision {
		t.Errorf("expected decision record, got %s", f.audit.records[0].Action)
	}
	if len(store.returns) != 1 {
		t.Errorf("expected return to be recorded, got %d", len(store.returns))
	}
	if len(f.queue.published) != 1 || f.queue.published[0].subject != messagequeue.SubjectDecisionMade {
		t.Errorf("expected decisions.made publish, got %+v", f.queue.published)
	}
}

func TestProcessReturnAnomalousIsMonitored(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 2, samples: 8}}}
	f := newPipelineFixture(store)

	res, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decision.Outcome != decision.OutcomeMonitored {
		t.Fatalf("expected monitored, got %s", res.Decision.Outcome)
	}
	if res.Restock == nil {
		t.Fatal("monitored decisions still execute")
	}
	if res.Review != nil {
		t.Error("monitored decisions do not enqueue a review")
	}
	if !strings.Contains(f.audit.records[0].Details, "flagged for sampling") {
		t.Errorf("expected sampling flag in details, got %q", f.audit.records[0].Details)
	}
}

func TestProcessReturnCeilingEscalates(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 20, samples: 30}}}
	f := newPipelineFixture(store)

	res, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decision.Outcome != decision.OutcomeEscalated {
		t.Fatalf("expected escalated, got %s", res.Decision.Outcome)
	}
	if res.Restock != nil {
		t.Error("escalated decisions must not execute")
	}
	if res.Review == nil {
		t.Fatal("expected a review item")
	}
	if res.Review.RequestedQuantity != 25 {
		t.Errorf("expected requested quantity 25, got %d", res.Review.RequestedQuantity)
	}
	if len(f.audit.records) != 1 {
		t.Fatalf("expected exactly 1 audit record, got %d", len(f.audit.records))
	}
	if !strings.Contains(f.audit.records[0].Details, res.Review.ID) {
		t.Errorf("expected review id in details, got %q", f.audit.records[0].Details)
	}
	if f.audit.records[0].ReviewID != res.Review.ID {
		t.Errorf("expected decision record review id %s, got %q", res.Review.ID, f.audit.records[0].ReviewID)
	}
}

func TestEscalationAuditReplaysWithReviewID(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 20, samples: 30}}}
	f := newPipelineFixture(store)

	res, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	states := audit.Replay(f.audit.records)
	st, ok := states[res.Decision.ID]
	if !ok {
		t.Fatalf("expected decision %s in replay, got %d states", res.Decision.ID, len(states))
	}
	if st.ReviewID != res.Review.ID {
		t.Errorf("expected replayed review id %s, got %q", res.Review.ID, st.ReviewID)
	}
	if st.ReviewStatus != review.StatusPending {
		t.Errorf("expected pending review status, got %q", st.ReviewStatus)
	}
}

func TestProcessReturnDuplicateEscalationReusesReview(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 20, samples: 30}}}
	f := newPipelineFixture(store)

	first, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 25})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 30})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.Review.ID != first.Review.ID {
		t.Errorf("expected duplicate escalation to reuse review %s, got %s", first.Review.ID, second.Review.ID)
	}
	if len(store.reviews) != 1 {
		t.Errorf("expected 1 queued item, got %d", len(store.reviews))
	}
	// Both decisions still write their own audit record.
	if len(f.audit.records) != 2 {
		t.Errorf("expected 2 audit records, got %d", len(f.audit.records))
	}
}

func TestProcessReturnExecutionFailure(t *testing.T) {
	store := &mockStore{
		history:          map[string]historyEntry{"A101": {avg: 4, samples: 10}},
		createRestockErr: errors.New("connection refused"),
	}
	f := newPipelineFixture(store)

	res, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ExecutionError == "" {
		t.Error("expected execution error to be reported")
	}
	if res.Restock != nil {
		t.Error("expected no restock on failure")
	}
	if len(f.audit.records) != 1 || f.audit.records[0].Action != audit.ActionExecutionFailed {
		t.Fatalf("expected one execution_failed record, got %+v", f.audit.records)
	}
	if len(store.returns) != 1 {
		t.Error("the return itself is still recorded")
	}
}

func TestProcessReturnInvalidEventWritesNothing(t *testing.T) {
	f := newPipelineFixture(&mockStore{})

	_, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ReturnQuantity: 5})
	var verr *event.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(f.audit.records) != 0 {
		t.Errorf("expected no audit records, got %d", len(f.audit.records))
	}
	if len(f.queue.published) != 0 {
		t.Errorf("expected no publishes, got %d", len(f.queue.published))
	}
}

func TestProcessQueryOrderStatus(t *testing.T) {
	store := &mockStore{orders: map[int]*order.Order{123: {OrderID: 123, Status: "shipped"}}}
	f := newPipelineFixture(store)

	res, err := f.pipeline.ProcessQuery(context.Background(), &event.QueryEvent{QueryID: "q-1", RawText: "Where is my order #123?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decision.Outcome != decision.OutcomeAutoApproved {
		t.Fatalf("expected auto_approved, got %s", res.Decision.Outcome)
	}
	if !strings.Contains(res.Reply, "shipped") {
		t.Errorf("expected shipped in reply, got %q", res.Reply)
	}
	if res.Review != nil {
		t.Error("expected no review item")
	}
}

func TestProcessQueryKeywordEscalates(t *testing.T) {
	f := newPipelineFixture(&mockStore{})

	res, err := f.pipeline.ProcessQuery(context.Background(), &event.QueryEvent{QueryID: "q-2", RawText: "URGENT: where is my order #9?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decision.Outcome != decision.OutcomeEscalated {
		t.Fatalf("expected escalated, got %s", res.Decision.Outcome)
	}
	if res.Review == nil {
		t.Fatal("expected a review item")
	}
	if res.ReferenceID != res.Review.ID {
		t.Errorf("expected reference id %s, got %s", res.Review.ID, res.ReferenceID)
	}
	if !strings.Contains(res.Reply, res.Review.ID) {
		t.Errorf("expected forwarded reply to carry the reference, got %q", res.Reply)
	}
	if f.audit.records[0].ReviewID != res.Review.ID {
		t.Errorf("expected decision record review id %s, got %q", res.Review.ID, f.audit.records[0].ReviewID)
	}
}

func TestProcessQueryUnknownIntentMonitored(t *testing.T) {
	f := newPipelineFixture(&mockStore{})

	res, err := f.pipeline.ProcessQuery(context.Background(), &event.QueryEvent{QueryID: "q-3", RawText: "can you sing me a song"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Decision.Outcome != decision.OutcomeMonitored {
		t.Fatalf("expected monitored, got %s", res.Decision.Outcome)
	}
	if !strings.Contains(res.Reply, "I can help with") {
		t.Errorf("expected help reply, got %q", res.Reply)
	}
}

func TestProcessReturnCachesHistoryWithConfiguredTTL(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 4, samples: 10}}}
	logger := testLogger()
	executor := NewExecutorService(store, 1.0)
	chatSvc := NewChatService(store, nil, logger)
	aud := &mockAudit{}
	reviews := NewReviewService(store, aud, executor, nil, nil, nil, logger)
	scorer := decision.NewRuleScorer(20, 3.0, nil)
	histCache := newMockCache()
	p := NewPipelineService(store, aud, histCache, 90*time.Second, scorer, decision.NewPolicy(0.7, 0.4),
		executor, chatSvc, reviews, nil, nil, nil, logger)

	if _, err := p.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ttl, ok := histCache.ttls["hist:A101"]; !ok || ttl != 90*time.Second {
		t.Errorf("expected history cached with 90s ttl, got %v (cached=%v)", ttl, ok)
	}
	// Recording the return invalidates the baseline.
	if len(histCache.deleted) != 1 || histCache.deleted[0] != "hist:A101" {
		t.Errorf("expected cache invalidation for hist:A101, got %v", histCache.deleted)
	}
}

func TestProcessReturnRecordsMetrics(t *testing.T) {
	store := &mockStore{history: map[string]historyEntry{"A101": {avg: 4, samples: 10}}}
	f := newPipelineFixture(store)

	if _, err := f.pipeline.ProcessReturn(context.Background(), &event.ReturnEvent{ProductID: "A101", ReturnQuantity: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.metrics.decisions) != 1 || f.metrics.decisions[0] != "restock/auto_approved" {
		t.Errorf("expected restock/auto_approved metric, got %v", f.metrics.decisions)
	}
}
