// Package order defines the read-only order records the chatbot answers from.
package order

import "time"

// Order is a customer order as loaded from the back-office data source.
type Order struct {
	OrderID    int       `json:"order_id"`
	Status     string    `json:"status"`
	CustomerID string    `json:"customer_id,omitempty"`
	ProductID  string    `json:"product_id,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	OrderedAt  time.Time `json:"ordered_at"`
}
