// Package chat defines intent detection and reply templates for the
// order-status chatbot.
package chat

import (
	"regexp"
	"strconv"
	"strings"
)

// Intent identifies what a query is asking for.
type Intent string

const (
	IntentOrderStatus   Intent = "order_status"
	IntentRestockStatus Intent = "restock_status"
	IntentUnknown       Intent = "unknown"
)

var (
	orderIDPattern   = regexp.MustCompile(`#?(\d+)`)
	productIDPattern = regexp.MustCompile(`product\s+([A-Za-z0-9]+)`)
)

// Match is the result of intent detection on a query.
type Match struct {
	Intent    Intent
	OrderID   int    // set for IntentOrderStatus
	ProductID string // set for IntentRestockStatus
}

// Detect classifies the query text against known intent patterns.
// Matching mirrors the phrasing the back office actually receives:
// "where is my order #123" and "when will product A101 be restocked".
func Detect(text string) Match {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "where is my order"):
		m := Match{Intent: IntentOrderStatus}
		if sub := orderIDPattern.FindStringSubmatch(lower); sub != nil {
			if id, err := strconv.Atoi(sub[1]); err == nil {
				m.OrderID = id
			}
		}
		return m
	case strings.Contains(lower, "when will product") && strings.Contains(lower, "restock"):
		m := Match{Intent: IntentRestockStatus}
		if sub := productIDPattern.FindStringSubmatch(lower); sub != nil {
			m.ProductID = strings.ToUpper(sub[1])
		}
		return m
	default:
		return Match{Intent: IntentUnknown}
	}
}

// ContainsKeyword reports whether the text contains any of the given
// escalation keywords, returning the first one hit.
func ContainsKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
