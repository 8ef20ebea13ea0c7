package decision

import (
	"github.com/backline-io/backline/internal/domain/chat"
	"github.com/backline-io/backline/internal/domain/event"
)

// ReturnHistory is the scorer context for a return event: what we know
// about the product's past return volume.
type ReturnHistory struct {
	AverageQuantity float64
	HasHistory      bool
}

// Scorer maps an event plus context to a confidence and rationale.
// Implementations must be pure and deterministic so audits are replayable;
// a learned model can replace RuleScorer behind this interface.
type Scorer interface {
	ScoreReturn(ev *event.ReturnEvent, hist ReturnHistory) Assessment
	ScoreQuery(ev *event.QueryEvent) Assessment
}

// RuleScorer is the rule-based Scorer. All weights come from construction;
// the scorer itself holds no mutable state.
type RuleScorer struct {
	quantityCeiling    int
	anomalyMultiplier  float64
	escalationKeywords []string
}

// Scoring constants. Penalties are subtracted from the base; the result is
// clamped to [0, 1].
const (
	returnBaseConfidence   = 0.9
	noHistoryPenalty       = 0.2
	anomalousPenalty       = 0.3
	ceilingPenalty         = 0.5
	intentMatchConfidence  = 0.9
	unknownIntentScore     = 0.5
	missingSubjectScore    = 0.3
)

// NewRuleScorer creates a RuleScorer with the given override rules.
func NewRuleScorer(quantityCeiling int, anomalyMultiplier float64, escalationKeywords []string) *RuleScorer {
	kws := make([]string, len(escalationKeywords))
	copy(kws, escalationKeywords)
	return &RuleScorer{
		quantityCeiling:    quantityCeiling,
		anomalyMultiplier:  anomalyMultiplier,
		escalationKeywords: kws,
	}
}

// ScoreReturn starts from a high base confidence and penalizes anomalies:
// unknown products, quantities far above the historical average, and
// quantities above the absolute ceiling (a hard override).
func (s *RuleScorer) ScoreReturn(ev *event.ReturnEvent, hist ReturnHistory) Assessment {
	a := Assessment{Confidence: returnBaseConfidence}

	if !hist.HasHistory {
		a.Confidence -= noHistoryPenalty
		a.Rationale = append(a.Rationale, ReasonNoHistory)
	} else if hist.AverageQuantity > 0 && float64(ev.ReturnQuantity) > hist.AverageQuantity*s.anomalyMultiplier {
		a.Confidence -= anomalousPenalty
		a.Rationale = append(a.Rationale, ReasonAnomalousQuantity)
	}

	if ev.ReturnQuantity > s.quantityCeiling {
		a.Confidence -= ceilingPenalty
		a.Rationale = append(a.Rationale, ReasonCeilingExceeded)
	}

	a.Confidence = clamp(a.Confidence)
	return a
}

// ScoreQuery scores by intent match. Any escalation keyword forces the
// confidence to zero regardless of other signals.
func (s *RuleScorer) ScoreQuery(ev *event.QueryEvent) Assessment {
	if _, hit := chat.ContainsKeyword(ev.RawText, s.escalationKeywords); hit {
		return Assessment{Confidence: 0, Rationale: []ReasonCode{ReasonKeywordOverride}}
	}

	m := chat.Detect(ev.RawText)
	switch m.Intent {
	case chat.IntentOrderStatus:
		if m.OrderID == 0 {
			return Assessment{Confidence: missingSubjectScore, Rationale: []ReasonCode{ReasonMissingSubject}}
		}
		return Assessment{Confidence: intentMatchConfidence}
	case chat.IntentRestockStatus:
		if m.ProductID == "" {
			return Assessment{Confidence: missingSubjectScore, Rationale: []ReasonCode{ReasonMissingSubject}}
		}
		return Assessment{Confidence: intentMatchConfidence}
	default:
		return Assessment{Confidence: unknownIntentScore, Rationale: []ReasonCode{ReasonUnknownIntent}}
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
