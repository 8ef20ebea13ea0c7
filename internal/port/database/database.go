// Package database defines the persistence port for Backline's stores.
package database

import (
	"context"

	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/domain/order"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/domain/review"
)

// Store is the port interface for the review queue and logistics records.
// Single logical writer; implementations serialize mutations at item
// granularity so a review item's status changes at most once.
type Store interface {
	// Review queue. CreateReviewItem returns domain.ErrDuplicate when a
	// pending item already exists for the same subject and kind.
	CreateReviewItem(ctx context.Context, item *review.Item) error
	GetReviewItem(ctx context.Context, id string) (*review.Item, error)
	// ListReviewItems filters by status; empty status lists everything.
	ListReviewItems(ctx context.Context, status review.Status) ([]review.Item, error)
	// PendingReviewForSubject returns the pending item for a subject and
	// kind, or domain.ErrNotFound when none is queued.
	PendingReviewForSubject(ctx context.Context, subjectID, kind string) (*review.Item, error)
	// UpdateReviewResolution persists a resolution. Returns
	// domain.ErrAlreadyResolved when the stored item is no longer pending.
	UpdateReviewResolution(ctx context.Context, item *review.Item) error

	// Restock requests.
	CreateRestockRequest(ctx context.Context, req *restock.Request) error
	LatestRestockForProduct(ctx context.Context, productID string) (*restock.Request, error)

	// Orders (read-only input).
	GetOrder(ctx context.Context, orderID int) (*order.Order, error)

	// Return history feeding the scorer context.
	RecordReturn(ctx context.Context, ev *event.ReturnEvent) error
	ReturnHistory(ctx context.Context, productID string) (avg float64, samples int, err error)
}
