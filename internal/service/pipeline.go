package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/chat"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/backline-io/backline/internal/port/auditlog"
	"github.com/backline-io/backline/internal/port/broadcast"
	"github.com/backline-io/backline/internal/port/cache"
	"github.com/backline-io/backline/internal/port/database"
	"github.com/backline-io/backline/internal/port/messagequeue"
)

const defaultHistoryTTL = 5 * time.Minute

// PipelineService runs the decision pipeline: score an incoming event,
// route it through the policy, execute or escalate, and write exactly one
// audit record per decision.
type PipelineService struct {
	store      database.Store
	audit      auditlog.Store
	cache      cache.Cache // optional
	historyTTL time.Duration
	scorer     decision.Scorer
	policy     decision.Policy
	executor   *ExecutorService
	chat       *ChatService
	reviews    *ReviewService
	queue      messagequeue.Queue    // optional
	hub        broadcast.Broadcaster // optional
	metrics    Metrics               // optional
	logger     *slog.Logger
}

// NewPipelineService wires the pipeline. Cache, queue, hub, and metrics
// may be nil; a non-positive historyTTL falls back to the default.
func NewPipelineService(
	store database.Store,
	auditStore auditlog.Store,
	histCache cache.Cache,
	historyTTL time.Duration,
	scorer decision.Scorer,
	policy decision.Policy,
	executor *ExecutorService,
	chatSvc *ChatService,
	reviews *ReviewService,
	queue messagequeue.Queue,
	hub broadcast.Broadcaster,
	metrics Metrics,
	logger *slog.Logger,
) *PipelineService {
	if historyTTL <= 0 {
		historyTTL = defaultHistoryTTL
	}
	return &PipelineService{
		store:      store,
		audit:      auditStore,
		cache:      histCache,
		historyTTL: historyTTL,
		scorer:     scorer,
		policy:     policy,
		executor:   executor,
		chat:       chatSvc,
		reviews:    reviews,
		queue:      queue,
		hub:        hub,
		metrics:    metrics,
		logger:     logger,
	}
}

// ReturnResult is the outcome of processing one return event.
type ReturnResult struct {
	Decision       decision.Decision `json:"decision"`
	Restock        *restock.Request  `json:"restock,omitempty"`
	Review         *review.Item      `json:"review,omitempty"`
	ExecutionError string            `json:"execution_error,omitempty"`
}

// QueryResult is the outcome of processing one query event.
type QueryResult struct {
	Decision    decision.Decision `json:"decision"`
	Reply       string            `json:"reply"`
	ReferenceID string            `json:"reference_id,omitempty"`
	Review      *review.Item      `json:"review,omitempty"`
}

// ProcessReturn scores a return event against the product's history and
// routes it. History is read before the event is recorded, so the current
// return never counts toward its own baseline.
func (s *PipelineService) ProcessReturn(ctx context.Context, ev *event.ReturnEvent) (*ReturnResult, error) {
	start := time.Now()
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	hist := s.returnHistory(ctx, ev.ProductID)
	a := s.scorer.ScoreReturn(ev, hist)
	outcome := s.policy.Decide(a)
	d := decision.New(ev.ProductID, decision.KindRestock, a, outcome)
	qty := s.executor.ProposedQuantity(ev.ReturnQuantity)

	res := &ReturnResult{Decision: d}
	var details, reviewID string

	switch outcome {
	case decision.OutcomeEscalated:
		item, created, err := s.reviews.Enqueue(ctx, d, qty)
		if err != nil {
			return nil, err
		}
		res.Review = item
		reviewID = item.ID
		if created {
			details = "escalated to review " + item.ID
		} else {
			details = "escalated, pending review " + item.ID + " already covers subject"
		}

	default:
		produced, err := s.executor.ExecuteRestock(ctx, d, qty)
		if err != nil {
			res.ExecutionError = err.Error()
			s.logger.Error("restock execution failed",
				"decision_id", d.ID, "product_id", ev.ProductID, "error", err)
			s.finishDecision(ctx, d, audit.NewFailureRecord(d, err.Error()), start)
			s.recordReturn(ctx, ev)
			return res, nil
		}
		res.Restock = produced
		details = fmt.Sprintf("restock request %s created (qty: %d)", produced.ID, produced.Quantity)
		if outcome == decision.OutcomeMonitored {
			details += ", flagged for sampling"
		}
	}

	rec := audit.NewDecisionRecord(d, details)
	rec.ReviewID = reviewID
	s.finishDecision(ctx, d, rec, start)
	s.recordReturn(ctx, ev)
	return res, nil
}

// ProcessQuery scores a customer query and routes it. Non-escalated
// queries always get a composed reply; escalated queries get the
// forwarded reply with the review item as the reference.
func (s *PipelineService) ProcessQuery(ctx context.Context, ev *event.QueryEvent) (*QueryResult, error) {
	start := time.Now()
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	a := s.scorer.ScoreQuery(ev)
	outcome := s.policy.Decide(a)
	d := decision.New(ev.QueryID, decision.KindChatReply, a, outcome)

	res := &QueryResult{Decision: d}
	var details, reviewID string

	switch outcome {
	case decision.OutcomeEscalated:
		item, created, err := s.reviews.Enqueue(ctx, d, 0)
		if err != nil {
			return nil, err
		}
		res.Review = item
		reviewID = item.ID
		res.ReferenceID = item.ID
		res.Reply = chat.ForwardedReply(item.ID)
		if created {
			details = "forwarded to support, reference " + item.ID
		} else {
			details = "forwarded to support, pending review " + item.ID + " already covers subject"
		}

	default:
		reply, err := s.chat.Compose(ctx, ev)
		res.Reply = reply
		details = "reply sent"
		if err != nil {
			details = "reply sent (degraded: " + err.Error() + ")"
		}
		if outcome == decision.OutcomeMonitored {
			details += ", flagged for sampling"
		}
	}

	rec := audit.NewDecisionRecord(d, details)
	rec.ReviewID = reviewID
	s.finishDecision(ctx, d, rec, start)
	return res, nil
}

// Audit returns audit records matching the filter, in write order.
func (s *PipelineService) Audit(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	recs, err := s.audit.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return recs, nil
}

// finishDecision writes the decision's single audit record and fans out
// notifications and metrics.
func (s *PipelineService) finishDecision(ctx context.Context, d decision.Decision, rec *audit.Record, start time.Time) {
	if err := s.audit.Append(ctx, rec); err != nil {
		s.logger.Error("audit append failed for decision", "decision_id", d.ID, "error", err)
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(ctx, string(d.Kind), string(d.Outcome), time.Since(start))
	}

	payload := messagequeue.DecisionMadePayload{
		DecisionID: d.ID,
		SubjectID:  d.SubjectID,
		Kind:       string(d.Kind),
		Outcome:    string(d.Outcome),
		Confidence: d.Confidence,
	}
	if s.queue != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			err = s.queue.Publish(ctx, messagequeue.SubjectDecisionMade, data)
		}
		if err != nil {
			s.logger.Warn("queue publish failed", "subject", messagequeue.SubjectDecisionMade, "error", err)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, "decision.made", payload)
	}

	s.logger.Info("decision made",
		"decision_id", d.ID,
		"subject_id", d.SubjectID,
		"kind", d.Kind,
		"outcome", d.Outcome,
		"confidence", d.Confidence)
}

// returnHistory loads a product's return baseline, preferring the cache.
// A load failure degrades to no history rather than blocking the decision.
func (s *PipelineService) returnHistory(ctx context.Context, productID string) decision.ReturnHistory {
	key := "hist:" + productID

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var hist decision.ReturnHistory
			if json.Unmarshal(data, &hist) == nil {
				return hist
			}
		}
	}

	avg, samples, err := s.store.ReturnHistory(ctx, productID)
	if err != nil {
		s.logger.Warn("return history lookup failed", "product_id", productID, "error", err)
		return decision.ReturnHistory{}
	}
	hist := decision.ReturnHistory{AverageQuantity: avg, HasHistory: samples > 0}

	if s.cache != nil {
		if data, err := json.Marshal(hist); err == nil {
			if err := s.cache.Set(ctx, key, data, s.historyTTL); err != nil {
				s.logger.Warn("history cache set failed", "product_id", productID, "error", err)
			}
		}
	}
	return hist
}

// recordReturn persists the observed return and drops the now stale
// history cache entry.
func (s *PipelineService) recordReturn(ctx context.Context, ev *event.ReturnEvent) {
	if err := s.store.RecordReturn(ctx, ev); err != nil {
		s.logger.Error("record return failed", "product_id", ev.ProductID, "error", err)
		return
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, "hist:"+ev.ProductID); err != nil {
			s.logger.Warn("history cache invalidation failed", "product_id", ev.ProductID, "error", err)
		}
	}
}
