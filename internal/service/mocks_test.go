package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/backline-io/backline/internal/domain"
	"github.com/backline-io/backline/internal/domain/audit"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/domain/order"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/domain/review"
	"github.com/backline-io/backline/internal/port/auditlog"
	"github.com/backline-io/backline/internal/port/broadcast"
	"github.com/backline-io/backline/internal/port/cache"
	"github.com/backline-io/backline/internal/port/database"
	"github.com/backline-io/backline/internal/port/messagequeue"
)

// Ensure mock types implement their interfaces at compile time.
var (
	_ database.Store        = (*mockStore)(nil)
	_ auditlog.Store        = (*mockAudit)(nil)
	_ messagequeue.Queue    = (*mockQueue)(nil)
	_ broadcast.Broadcaster = (*mockBroadcaster)(nil)
	_ cache.Cache           = (*mockCache)(nil)
	_ Metrics               = (*mockMetrics)(nil)
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type historyEntry struct {
	avg     float64
	samples int
}

type mockStore struct {
	reviews  []*review.Item
	restocks []*restock.Request
	orders   map[int]*order.Order
	returns  []event.ReturnEvent
	history  map[string]historyEntry

	createReviewErr  error
	resolveErr       error
	createRestockErr error
	recordReturnErr  error
	historyErr       error
}

func (m *mockStore) CreateReviewItem(_ context.Context, item *review.Item) error {
	if m.createReviewErr != nil {
		return m.createReviewErr
	}
	for _, it := range m.reviews {
		if it.Status == review.StatusPending &&
			it.Decision.SubjectID == item.Decision.SubjectID &&
			it.Decision.Kind == item.Decision.Kind {
			return domain.ErrDuplicate
		}
	}
	cp := *item
	m.reviews = append(m.reviews, &cp)
	return nil
}

func (m *mockStore) GetReviewItem(_ context.Context, id string) (*review.Item, error) {
	for _, it := range m.reviews {
		if it.ID == id {
			cp := *it
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) ListReviewItems(_ context.Context, status review.Status) ([]review.Item, error) {
	var out []review.Item
	for _, it := range m.reviews {
		if status == "" || it.Status == status {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *mockStore) PendingReviewForSubject(_ context.Context, subjectID, kind string) (*review.Item, error) {
	for _, it := range m.reviews {
		if it.Status == review.StatusPending &&
			it.Decision.SubjectID == subjectID &&
			string(it.Decision.Kind) == kind {
			cp := *it
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) UpdateReviewResolution(_ context.Context, item *review.Item) error {
	if m.resolveErr != nil {
		return m.resolveErr
	}
	for i, it := range m.reviews {
		if it.ID == item.ID {
			if it.Status.Terminal() {
				return domain.ErrAlreadyResolved
			}
			cp := *item
			m.reviews[i] = &cp
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockStore) CreateRestockRequest(_ context.Context, req *restock.Request) error {
	if m.createRestockErr != nil {
		return m.createRestockErr
	}
	cp := *req
	m.restocks = append(m.restocks, &cp)
	return nil
}

func (m *mockStore) LatestRestockForProduct(_ context.Context, productID string) (*restock.Request, error) {
	for i := len(m.restocks) - 1; i >= 0; i-- {
		if m.restocks[i].ProductID == productID {
			cp := *m.restocks[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) GetOrder(_ context.Context, orderID int) (*order.Order, error) {
	if ord, ok := m.orders[orderID]; ok {
		cp := *ord
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockStore) RecordReturn(_ context.Context, ev *event.ReturnEvent) error {
	if m.recordReturnErr != nil {
		return m.recordReturnErr
	}
	m.returns = append(m.returns, *ev)
	return nil
}

func (m *mockStore) ReturnHistory(_ context.Context, productID string) (float64, int, error) {
	if m.historyErr != nil {
		return 0, 0, m.historyErr
	}
	h := m.history[productID]
	return h.avg, h.samples, nil
}

type mockAudit struct {
	records   []audit.Record
	appendErr error
}

func (m *mockAudit) Append(_ context.Context, rec *audit.Record) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *mockAudit) List(_ context.Context, filter audit.Filter) ([]audit.Record, error) {
	var out []audit.Record
	for _, rec := range m.records {
		if filter.SubjectID != "" && rec.SubjectID != filter.SubjectID {
			continue
		}
		if filter.DecisionID != "" && rec.DecisionID != filter.DecisionID {
			continue
		}
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

type mockQueue struct {
	published []struct {
		subject string
		data    []byte
	}
	publishErr error
}

func (m *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (m *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (m *mockQueue) Drain() error { return nil }
func (m *mockQueue) Close() error { return nil }

type mockBroadcaster struct {
	events []struct {
		eventType string
		payload   any
	}
}

func (m *mockBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	m.events = append(m.events, struct {
		eventType string
		payload   any
	}{eventType, payload})
}

type mockCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, ok := m.entries[key]
	return data, ok, nil
}

func (m *mockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	delete(m.entries, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *mockCache) Close() {}

type mockMetrics struct {
	decisions   []string
	resolutions []string
}

func (m *mockMetrics) RecordDecision(_ context.Context, kind, outcome string, _ time.Duration) {
	m.decisions = append(m.decisions, kind+"/"+outcome)
}

func (m *mockMetrics) RecordResolution(_ context.Context, status string) {
	m.resolutions = append(m.resolutions, status)
}
