package score

import (
	"odinboard/internal/config"
	"odinboard/internal/domain"
	"strings"
	"time"
)

const (
	reasonLowPrice   = "Low price"
	reasonNoActivity = "No recent activity"

	// raw price is fixed point in 1/1000 sat
	rawPerSat = 1000.0
)

// Activity thresholds. A token is active when it still trades above the
// price floor and saw an action inside the window.
type ActivityRule struct {
	MinPriceSats float64
	Window       time.Duration
}

func DefaultActivityRule() ActivityRule {
	return ActivityRule{
		MinPriceSats: 0.15,
		Window:       8 * 24 * time.Hour,
	}
}

func ActivityRuleFromConfig(cfg *config.ScoringConfig) ActivityRule {
	rule := DefaultActivityRule()
	if cfg == nil {
		return rule
	}
	if cfg.MinActivePrice > 0 {
		rule.MinPriceSats = cfg.MinActivePrice
	}
	if cfg.ActivityWindow > 0 {
		rule.Window = cfg.ActivityWindow
	}
	return rule
}

// Classify decides activity state for one token. Deterministic over
// (price, price_1d, last_action_time, now); reason is empty iff active.
func Classify(t *domain.Token, now time.Time, rule ActivityRule) (bool, string) {
	priceSats := float64(t.Price) / rawPerSat

	var reasons []string
	if priceSats < rule.MinPriceSats {
		reasons = append(reasons, reasonLowPrice)
	}
	if !t.LastActionTime.After(now.Add(-rule.Window)) {
		reasons = append(reasons, reasonNoActivity)
	}

	if len(reasons) > 0 {
		return false, strings.Join(reasons, " & ")
	}
	return true, ""
}

// Enrich recomputes the derived fields in place. Invoked on every token
// fetched from any endpoint so activity state is consistent regardless of
// entry point.
func Enrich(t *domain.Token, now time.Time, rule ActivityRule) {
	t.PriceInSats = float64(t.Price) / rawPerSat

	if t.Price1D > 0 {
		t.PriceChange24H = float64(t.Price-t.Price1D) / float64(t.Price1D) * 100
	} else {
		t.PriceChange24H = 0
	}

	t.IsActive, t.InactiveReason = Classify(t, now, rule)
}

func EnrichAll(ts []domain.Token, now time.Time, rule ActivityRule) {
	for i := range ts {
		Enrich(&ts[i], now, rule)
	}
}
