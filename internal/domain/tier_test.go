package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// boundaries are inclusive on the lower bound
func TestTierFor_Boundaries(t *testing.T) {
	t.Parallel()

	th := DefaultTierThresholds()

	tests := []struct {
		score float64
		want  Tier
	}{
		{100, TierLegendary},
		{99.99, TierEpic},
		{90, TierEpic},
		{89.99, TierGreat},
		{80, TierGreat},
		{79.99, TierOkay},
		{70, TierOkay},
		{69.99, TierNeutral},
		{60, TierNeutral},
		{59.99, TierMeh},
		{45, TierMeh},
		{44.99, TierScam},
		{0, TierScam},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.score, th), "score %v", tt.score)
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"legendary", "epic", "great", "okay", "neutral", "meh", "scam"} {
		tier, ok := ParseTier(valid)
		assert.True(t, ok, valid)
		assert.Equal(t, Tier(valid), tier)
	}

	// empty means no filter
	tier, ok := ParseTier("")
	assert.True(t, ok)
	assert.Equal(t, Tier(""), tier)

	_, ok = ParseTier("mythic")
	assert.False(t, ok)
}

func TestTokenTrades(t *testing.T) {
	t.Parallel()

	tok := Token{BuyCount: 7, SellCount: 3}
	assert.Equal(t, int64(10), tok.Trades())
}
