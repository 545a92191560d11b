package domain

import "time"

// Token snapshot as fetched from the upstream market API.
// Immutable after fetch except the derived fields, which are recomputed
// by the activity classifier on every fetch.
type Token struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Ticker         string    `json:"ticker"`
	Creator        string    `json:"creator"` // principal of the minter
	CreatedTime    time.Time `json:"created_time"`
	Price          int64     `json:"price"` // raw fixed point, 1/1000 sat
	Price1D        int64     `json:"price_1d"`
	Volume         int64     `json:"volume"`
	Marketcap      int64     `json:"marketcap"`
	HolderCount    int64     `json:"holder_count"`
	HolderTop      int64     `json:"holder_top"`
	HolderDev      int64     `json:"holder_dev"`
	BuyCount       int64     `json:"buy_count"`
	SellCount      int64     `json:"sell_count"`
	LastActionTime time.Time `json:"last_action_time"`
	Twitter        string    `json:"twitter"`
	Website        string    `json:"website"`
	Telegram       string    `json:"telegram"`

	// derived, see score.Enrich
	PriceInSats    float64 `json:"price_in_sats"`
	PriceChange24H float64 `json:"price_change_24h"`
	IsActive       bool    `json:"is_active"`
	InactiveReason string  `json:"inactive_reason"`
}

// Trades count buy + sell actions on this token
func (t *Token) Trades() int64 {
	return t.BuyCount + t.SellCount
}

// Identity of a creator as returned by the upstream user endpoint
type UserProfile struct {
	Principal string `json:"principal"`
	Username  string `json:"username"`
	Image     string `json:"image"`
	Bio       string `json:"bio"`
}

// Aggregate over one creator's token set; recomputed wholesale, never patched in place.
// Rank is assigned only at ranking time and is not stable across cycles.
type CreatorPerformance struct {
	Principal        string    `json:"principal"`
	Username         string    `json:"username"`
	Image            string    `json:"image"`
	TotalTokens      int       `json:"total_tokens"`
	ActiveTokens     int       `json:"active_tokens"`
	TotalVolume      int64     `json:"total_volume"` // raw units
	BTCVolume        float64   `json:"btc_volume"`   // normalized
	SuccessRate      float64   `json:"success_rate"` // percent
	WeightedScore    float64   `json:"weighted_score"`
	ConfidenceScore  float64   `json:"confidence_score"` // 0..100
	TotalHolders     int64     `json:"total_holders"`
	TotalTrades      int64     `json:"total_trades"`
	LastTokenCreated time.Time `json:"last_token_created"`
	Rank             int       `json:"rank,omitempty"`
	Tokens           []Token   `json:"tokens"` // top tokens by price, UI drill-down only
}

// Transient join used during incremental sync.
// Creator == nil means creator resolution failed, not that the creator is absent.
type TokenWithCreator struct {
	Token   Token               `json:"token"`
	Creator *CreatorPerformance `json:"creator"`
}

// Field-reduced holder snapshot served by /api/token/{id}/holders
type TokenHolderSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	HolderCount int64  `json:"holder_count"`
	HolderTop   int64  `json:"holder_top"`
	HolderDev   int64  `json:"holder_dev"`
}

func (t *Token) HolderSummary() TokenHolderSummary {
	return TokenHolderSummary{
		ID:          t.ID,
		Name:        t.Name,
		HolderCount: t.HolderCount,
		HolderTop:   t.HolderTop,
		HolderDev:   t.HolderDev,
	}
}
