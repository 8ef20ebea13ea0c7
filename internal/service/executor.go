// Package service implements business logic on top of ports.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/backline-io/backline/internal/domain"
	"github.com/backline-io/backline/internal/domain/decision"
	"github.com/backline-io/backline/internal/domain/restock"
	"github.com/backline-io/backline/internal/port/database"
)

// ExecutorService produces the records an approved decision authorizes.
// It is mechanical: all routing has already happened by the time it runs.
type ExecutorService struct {
	store               database.Store
	replenishmentFactor float64
}

// NewExecutorService creates an ExecutorService with the given
// replenishment factor (restock quantity = return quantity * factor).
func NewExecutorService(store database.Store, replenishmentFactor float64) *ExecutorService {
	return &ExecutorService{store: store, replenishmentFactor: replenishmentFactor}
}

// ProposedQuantity computes the restock quantity for a returned quantity.
func (s *ExecutorService) ProposedQuantity(returnQuantity int) int {
	return int(math.Ceil(float64(returnQuantity) * s.replenishmentFactor))
}

// ExecuteRestock persists a restock request at the given quantity.
// Fails with a domain.ExecutionError when no valid request can be produced.
func (s *ExecutorService) ExecuteRestock(ctx context.Context, d decision.Decision, quantity int) (*restock.Request, error) {
	if d.Kind != decision.KindRestock {
		return nil, &domain.ExecutionError{Op: "restock", Err: fmt.Errorf("decision %s has kind %s", d.ID, d.Kind)}
	}
	if quantity < 1 {
		return nil, &domain.ExecutionError{Op: "restock", Err: errors.New("quantity must be >= 1")}
	}

	req := restock.NewRequest(d.SubjectID, quantity, d.ID)
	if err := s.store.CreateRestockRequest(ctx, req); err != nil {
		return nil, &domain.ExecutionError{Op: "restock", Err: err}
	}
	return req, nil
}
