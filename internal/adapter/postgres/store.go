package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/backline-io/backline/internal/domain"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/domain/order"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/domain/review"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Review queue ---

func (s *Store) CreateReviewItem(ctx context.Context, item *review.Item) error {
	decisionJSON, err := json.Marshal(item.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	const q = `INSERT INTO review_items
		(id, subject_id, kind, decision, status, requested_quantity, reviewer,
		 resolution_note, modified_quantity, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err = s.pool.Exec(ctx, q,
		item.ID, item.Decision.SubjectID, string(item.Decision.Kind), decisionJSON,
		string(item.Status), item.RequestedQuantity, item.Reviewer,
		item.ResolutionNote, item.ModifiedQuantity, item.CreatedAt, item.ResolvedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create review item for %s: %w", item.Decision.SubjectID, domain.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("create review item: %w", err)
	}
	return nil
}

func (s *Store) GetReviewItem(ctx context.Context, id string) (*review.Item, error) {
	const q = `SELECT id, decision, status, requested_quantity, reviewer,
		resolution_note, modified_quantity, created_at, resolved_at
		FROM review_items WHERE id = $1`

	item, err := scanReviewItem(s.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, notFoundWrap(err, "get review item %s", id)
	}
	return item, nil
}

func (s *Store) ListReviewItems(ctx context.Context, status review.Status) ([]review.Item, error) {
	q := `SELECT id, decision, status, requested_quantity, reviewer,
		resolution_note, modified_quantity, created_at, resolved_at
		FROM review_items`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, string(status))
	}
	q += ` ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var items []review.Item
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *Store) PendingReviewForSubject(ctx context.Context, subjectID, kind string) (*review.Item, error) {
	const q = `SELECT id, decision, status, requested_quantity, reviewer,
		resolution_note, modified_quantity, created_at, resolved_at
		FROM review_items WHERE subject_id = $1 AND kind = $2 AND status = 'pending'`

	item, err := scanReviewItem(s.pool.QueryRow(ctx, q, subjectID, kind))
	if err != nil {
		return nil, notFoundWrap(err, "pending review for %s", subjectID)
	}
	return item, nil
}

func (s *Store) UpdateReviewResolution(ctx context.Context, item *review.Item) error {
	const q = `UPDATE review_items
		SET status = $2, reviewer = $3, resolution_note = $4,
		    modified_quantity = $5, resolved_at = $6
		WHERE id = $1 AND status = 'pending'`
	tag, err := s.pool.Exec(ctx, q,
		item.ID, string(item.Status), item.Reviewer, item.ResolutionNote,
		item.ModifiedQuantity, item.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("resolve review item %s: %w", item.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// No pending row matched: either the item is already resolved or it
	// never existed.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM review_items WHERE id = $1)`, item.ID).Scan(&exists); err != nil {
		return fmt.Errorf("resolve review item %s: %w", item.ID, err)
	}
	if exists {
		return fmt.Errorf("resolve review item %s: %w", item.ID, domain.ErrAlreadyResolved)
	}
	return fmt.Errorf("resolve review item %s: %w", item.ID, domain.ErrNotFound)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanReviewItem(row scannable) (*review.Item, error) {
	var (
		item         review.Item
		decisionJSON []byte
		status       string
	)
	if err := row.Scan(
		&item.ID, &decisionJSON, &status, &item.RequestedQuantity, &item.Reviewer,
		&item.ResolutionNote, &item.ModifiedQuantity, &item.CreatedAt, &item.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(decisionJSON, &item.Decision); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	item.Status = review.Status(status)
	return &item, nil
}

// --- Restock requests ---

func (s *Store) CreateRestockRequest(ctx context.Context, req *restock.Request) error {
	const q = `INSERT INTO restock_requests (id, product_id, quantity, decision_id, created_at)
		VALUES ($1,$2,$3,$4,$5)`
	if _, err := s.pool.Exec(ctx, q,
		req.ID, req.ProductID, req.Quantity, req.DecisionID, req.CreatedAt); err != nil {
		return fmt.Errorf("create restock request: %w", err)
	}
	return nil
}

func (s *Store) LatestRestockForProduct(ctx context.Context, productID string) (*restock.Request, error) {
	const q = `SELECT id, product_id, quantity, decision_id, created_at
		FROM restock_requests WHERE product_id = $1
		ORDER BY created_at DESC LIMIT 1`

	var req restock.Request
	err := s.pool.QueryRow(ctx, q, productID).Scan(
		&req.ID, &req.ProductID, &req.Quantity, &req.DecisionID, &req.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "latest restock for %s", productID)
	}
	return &req, nil
}

// --- Orders ---

func (s *Store) GetOrder(ctx context.Context, orderID int) (*order.Order, error) {
	const q = `SELECT order_id, status, customer_id, product_id, quantity, ordered_at
		FROM orders WHERE order_id = $1`

	var o order.Order
	err := s.pool.QueryRow(ctx, q, orderID).Scan(
		&o.OrderID, &o.Status, &o.CustomerID, &o.ProductID, &o.Quantity, &o.OrderedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get order %d", orderID)
	}
	return &o, nil
}

// --- Return history ---

func (s *Store) RecordReturn(ctx context.Context, ev *event.ReturnEvent) error {
	const q = `INSERT INTO returns (product_id, quantity, occurred_at) VALUES ($1,$2,$3)`
	if _, err := s.pool.Exec(ctx, q, ev.ProductID, ev.ReturnQuantity, ev.OccurredAt); err != nil {
		return fmt.Errorf("record return: %w", err)
	}
	return nil
}

func (s *Store) ReturnHistory(ctx context.Context, productID string) (float64, int, error) {
	const q = `SELECT COALESCE(AVG(quantity), 0), COUNT(*) FROM returns WHERE product_id = $1`

	var (
		avg     float64
		samples int
	)
	if err := s.pool.QueryRow(ctx, q, productID).Scan(&avg, &samples); err != nil {
		return 0, 0, fmt.Errorf("return history for %s: %w", productID, err)
	}
	return avg, samples, nil
}
