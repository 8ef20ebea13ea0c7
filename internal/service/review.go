package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/backline-io/backline/internal/domain"
	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/backline-io/backline/internal/port/auditlog"
	"github.com/backline-io/backline/internal/port/broadcast"
	"github.com/backline-io/backline/internal/port/database"
	"github.com/backline-io/backline/internal/port/messagequeue"
)

// ReviewService owns the review queue lifecycle: enqueue on escalation,
// list, resolve, stats. Resolutions write exactly one audit record each.
type ReviewService struct {
	store    database.Store
	audit    auditlog.Store
	executor *ExecutorService
	queue    messagequeue.Queue    // optional
	hub      broadcast.Broadcaster // optional
	metrics  Metrics               // optional
	logger   *slog.Logger
}

// NewReviewService creates a ReviewService. Queue, hub, and metrics may
// be nil.
func NewReviewService(
	store database.Store,
	auditStore auditlog.Store,
	executor *ExecutorService,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	metrics Metrics,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		store:    store,
		audit:    auditStore,
		executor: executor,
		queue:    queue,
		hub:      hub,
		metrics:  metrics,
		logger:   logger,
	}
}

// Enqueue queues an escalated decision for human review. Idempotent per
// subject and kind: when a pending item already covers the subject, the
// existing item is returned and created is false.
func (s *ReviewService) Enqueue(ctx context.Context, d decision.Decision, requestedQuantity int) (item *review.Item, created bool, err error) {
	item = review.NewItem(d, requestedQuantity)

	err = s.store.CreateReviewItem(ctx, item)
	if errors.Is(err, domain.ErrDuplicate) {
		existing, lookupErr := s.store.PendingReviewForSubject(ctx, d.SubjectID, string(d.Kind))
		if lookupErr != nil {
			return nil, false, fmt.Errorf("load existing pending review: %w", lookupErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create review item: %w", err)
	}

	s.notify(ctx, messagequeue.SubjectReviewEnqueued, "review.enqueued", messagequeue.ReviewEnqueuedPayload{
		ReviewID:   item.ID,
		DecisionID: d.ID,
		SubjectID:  d.SubjectID,
		Kind:       string(d.Kind),
	})
	return item, true, nil
}

// List returns queue items, optionally filtered by status.
func (s *ReviewService) List(ctx context.Context, status review.Status) ([]review.Item, error) {
	items, err := s.store.ListReviewItems(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	return items, nil
}

// Get returns a single review item by id.
func (s *ReviewService) Get(ctx context.Context, id string) (*review.Item, error) {
	return s.store.GetReviewItem(ctx, id)
}

// Resolve applies a reviewer verdict to a pending item. Approved and
// modified restock items execute the authorized request; the execution
// outcome rides in the single resolution audit record rather than a
// record of its own.
func (s *ReviewService) Resolve(ctx context.Context, id string, req *review.ResolveRequest) (*review.Item, *restock.Request, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	item, err := s.store.GetReviewItem(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if item.Status.Terminal() {
		return nil, nil, domain.ErrAlreadyResolved
	}

	item.Resolve(req, time.Now().UTC())
	if err := s.store.UpdateReviewResolution(ctx, item); err != nil {
		return nil, nil, err
	}

	produced, details := s.executeResolution(ctx, item)

	if err := s.audit.Append(ctx, audit.NewResolutionRecord(item, details)); err != nil {
		s.logger.Error("audit append failed for resolution", "review_id", item.ID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.RecordResolution(ctx, string(item.Status))
	}

	s.notify(ctx, messagequeue.SubjectReviewResolved, "review.resolved", messagequeue.ReviewResolvedPayload{
		ReviewID: item.ID,
		Status:   string(item.Status),
		Reviewer: item.Reviewer,
	})

	s.logger.Info("review resolved",
		"review_id", item.ID,
		"decision_id", item.Decision.ID,
		"status", item.Status,
		"reviewer", item.Reviewer)
	return item, produced, nil
}

// executeResolution runs the action an approval authorized and describes
// the outcome for the resolution audit record.
func (s *ReviewService) executeResolution(ctx context.Context, item *review.Item) (*restock.Request, string) {
	switch item.Status {
	case review.StatusRejected:
		return nil, "no action taken"
	case review.StatusApproved, review.StatusModified:
	default:
		return nil, ""
	}

	if item.Decision.Kind != decision.KindRestock {
		return nil, "approved, no executable action for kind " + string(item.Decision.Kind)
	}

	produced, err := s.executor.ExecuteRestock(ctx, item.Decision, item.ExecutedQuantity())
	if err != nil {
		s.logger.Error("resolution restock failed",
			"review_id", item.ID, "decision_id", item.Decision.ID, "error", err)
		return nil, "restock failed: " + err.Error()
	}
	return produced, fmt.Sprintf("restock request %s created (qty: %d)", produced.ID, produced.Quantity)
}

// Stats aggregates the whole queue.
func (s *ReviewService) Stats(ctx context.Context) (review.Stats, error) {
	items, err := s.store.ListReviewItems(ctx, "")
	if err != nil {
		return review.Stats{}, fmt.Errorf("list review items: %w", err)
	}
	return review.Aggregate(items), nil
}

// notify publishes a queue message and a websocket event. Both are
// best-effort; failures are logged and never surfaced to the caller.
func (s *ReviewService) notify(ctx context.Context, subject, eventType string, payload any) {
	if s.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			err = s.queue.Publish(ctx, subject, data)
		}
		if err != nil {
			s.logger.Warn("queue publish failed", "subject", subject, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, eventType, payload)
	}
}
