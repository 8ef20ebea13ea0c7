// Package restock defines restock request records produced by the executor.
package restock

import (
	"time"

	"github.com/google/uuid"
)

// Request is a restock request awaiting fulfillment. Created either by an
// auto-approved decision or by an approved/modified human resolution.
type Request struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	Quantity   int       `json:"quantity"`
	DecisionID string    `json:"decision_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewRequest creates a restock request for a decided product return.
func NewRequest(productID string, quantity int, decisionID string) *Request {
	return &Request{
		ID:         uuid.NewString(),
		ProductID:  productID,
		Quantity:   quantity,
		DecisionID: decisionID,
		CreatedAt:  time.Now().UTC(),
	}
}
