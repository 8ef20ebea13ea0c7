package chat

import "fmt"

// Reply templates. Replies are composed locally; the optional completion
// service only ever rephrases, never decides.

// OrderStatusReply formats a found order's status.
func OrderStatusReply(orderID int, status string) string {
	return fmt.Sprintf("Your order #%d is: %s.", orderID, status)
}

// OrderNotFoundReply is used when the order id does not exist.
func OrderNotFoundReply(orderID int) string {
	return fmt.Sprintf("I couldn't find order #%d.", orderID)
}

// OrderIDMissingReply asks the customer for a usable order number.
func OrderIDMissingReply() string {
	return "Please provide a valid order number (e.g. #123)."
}

// RestockPendingReply formats a pending restock for a product.
func RestockPendingReply(productID string, quantity int) string {
	return fmt.Sprintf("Product %s is pending restock (qty: %d).", productID, quantity)
}

// RestockNotScheduledReply is used when no restock exists for the product.
func RestockNotScheduledReply(productID string) string {
	return fmt.Sprintf("No restock is scheduled for product %s.", productID)
}

// HelpReply lists what the bot can answer.
func HelpReply() string {
	return "I can help with: 'Where is my order #123?' or 'When will product A101 be restocked?'"
}

// ForwardedReply is the degraded reply used when a query is escalated to a
// human. The reference id lets the customer correlate with the review queue.
func ForwardedReply(referenceID string) string {
	return fmt.Sprintf("Your query has been forwarded to our support team. Reference ID: %s", referenceID)
}
