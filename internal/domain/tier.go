package domain

// Confidence tier shown on the dashboard. Single source of truth for every
// component that displays or filters by tier.
type Tier string

const (
	TierLegendary Tier = "legendary"
	TierEpic      Tier = "epic"
	TierGreat     Tier = "great"
	TierOkay      Tier = "okay"
	TierNeutral   Tier = "neutral"
	TierMeh       Tier = "meh"
	TierScam      Tier = "scam"
)

// Lower bounds per tier, inclusive. Values are product decisions; keep the
// defaults unless config overrides them.
type TierThresholds struct {
	Legendary float64 `yaml:"legendary"`
	Epic      float64 `yaml:"epic"`
	Great     float64 `yaml:"great"`
	Okay      float64 `yaml:"okay"`
	Neutral   float64 `yaml:"neutral"`
	Meh       float64 `yaml:"meh"`
}

func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		Legendary: 100,
		Epic:      90,
		Great:     80,
		Okay:      70,
		Neutral:   60,
		Meh:       45,
	}
}

// TierFor maps a confidence score to its tier. Boundaries are inclusive on
// the lower bound; everything below Meh is scam.
func TierFor(score float64, t TierThresholds) Tier {
	switch {
	case score >= t.Legendary:
		return TierLegendary
	case score >= t.Epic:
		return TierEpic
	case score >= t.Great:
		return TierGreat
	case score >= t.Okay:
		return TierOkay
	case score >= t.Neutral:
		return TierNeutral
	case score >= t.Meh:
		return TierMeh
	default:
		return TierScam
	}
}

// ParseTier validates a tier filter value from the API; empty means no filter.
func ParseTier(s string) (Tier, bool) {
	switch Tier(s) {
	case TierLegendary, TierEpic, TierGreat, TierOkay, TierNeutral, TierMeh, TierScam:
		return Tier(s), true
	case "":
		return "", true
	default:
		return "", false
	}
}
