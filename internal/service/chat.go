package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/backline-io/backline/internal/adapter/completion"
	"github.com/backline-io/backline/internal/domain"
	"github.com/backline-io/backline/internal/domain/chat"
	"github.com/backline-io/backline/internal/domain/event"
	"github.com/backline-io/backline/internal/port/database"
)

const rephraseSystemPrompt = "You rephrase short customer-support replies to sound warmer. " +
	"Keep every fact, number, and id exactly as given. Reply with the rephrased text only."

// ChatService composes replies to customer queries. Replies are always
// grounded in store lookups; the completion client only rephrases and is
// skipped entirely when unset or unavailable.
type ChatService struct {
	store      database.Store
	completion *completion.Client
	logger     *slog.Logger
}

// NewChatService creates a ChatService. The completion client may be nil.
func NewChatService(store database.Store, cc *completion.Client, logger *slog.Logger) *ChatService {
	return &ChatService{store: store, completion: cc, logger: logger}
}

// Compose builds a reply for the query. It always returns a usable reply;
// a non-nil error reports a degraded lookup so callers can record it.
func (s *ChatService) Compose(ctx context.Context, ev *event.QueryEvent) (string, error) {
	match := chat.Detect(ev.RawText)

	reply, err := s.composeForMatch(ctx, match)
	if err != nil {
		return reply, err
	}
	return s.rephrase(ctx, reply), nil
}

func (s *ChatService) composeForMatch(ctx context.Context, match chat.Match) (string, error) {
	switch match.Intent {
	case chat.IntentOrderStatus:
		if match.OrderID == 0 {
			return chat.OrderIDMissingReply(), nil
		}
		ord, err := s.store.GetOrder(ctx, match.OrderID)
		if errors.Is(err, domain.ErrNotFound) {
			return chat.OrderNotFoundReply(match.OrderID), nil
		}
		if err != nil {
			return chat.HelpReply(), fmt.Errorf("lookup order %d: %w", match.OrderID, err)
		}
		return chat.OrderStatusReply(ord.OrderID, ord.Status), nil

	case chat.IntentRestockStatus:
		if match.ProductID == "" {
			return chat.HelpReply(), nil
		}
		req, err := s.store.LatestRestockForProduct(ctx, match.ProductID)
		if errors.Is(err, domain.ErrNotFound) {
			return chat.RestockNotScheduledReply(match.ProductID), nil
		}
		if err != nil {
			return chat.HelpReply(), fmt.Errorf("lookup restock for %s: %w", match.ProductID, err)
		}
		return chat.RestockPendingReply(req.ProductID, req.Quantity), nil

	default:
		return chat.HelpReply(), nil
	}
}

// rephrase runs the optional completion pass. Any failure falls back to
// the template reply; the customer never waits on a retry.
func (s *ChatService) rephrase(ctx context.Context, reply string) string {
	if s.completion == nil {
		return reply
	}
	resp, err := s.completion.Complete(ctx, rephraseSystemPrompt, reply)
	if err != nil {
		s.logger.Warn("completion rephrase failed, using template reply", "error", err)
		return reply
	}
	if resp.Content == "" {
		return reply
	}
	return resp.Content
}
