package score

import (
	"math"
	"odinboard/internal/config"
	"odinboard/internal/domain"
	"sort"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// raw volume units (1/1000 sat) per BTC
const rawPerBTC = 1e11

// Blend weights for the confidence score. Product constants; config may
// override but defaults must stay for behavioral parity.
type Weights struct {
	Success float64
	Volume  float64
	Holders float64
	Trades  float64
}

func DefaultWeights() Weights {
	return Weights{Success: 0.70, Volume: 0.20, Holders: 0.08, Trades: 0.02}
}

// Computes creator performance records from a creator's token set.
// Pure over its inputs; fetching tokens and identity is the caller's job.
type Engine struct {
	log        logger.Logger
	weights    Weights
	rule       ActivityRule
	maxTracked int
	now        func() time.Time
}

func NewEngine(log logger.Logger, cfg *config.ScoringConfig) *Engine {
	weights := DefaultWeights()
	maxTracked := 25

	if cfg != nil {
		if cfg.Weights.Success > 0 || cfg.Weights.Volume > 0 || cfg.Weights.Holders > 0 || cfg.Weights.Trades > 0 {
			weights = Weights{
				Success: cfg.Weights.Success,
				Volume:  cfg.Weights.Volume,
				Holders: cfg.Weights.Holders,
				Trades:  cfg.Weights.Trades,
			}
		}
		if cfg.MaxTrackedTokens > 0 {
			maxTracked = cfg.MaxTrackedTokens
		}
	}

	return &Engine{
		log:        log,
		weights:    weights,
		rule:       ActivityRuleFromConfig(cfg),
		maxTracked: maxTracked,
		now:        time.Now,
	}
}

func (e *Engine) Rule() ActivityRule {
	return e.rule
}

// Aggregate builds the performance record for one creator.
// Returns nil when the creator has zero tokens or the identity lookup
// failed upstream (identity == nil); callers treat nil as "no data", not a fault.
func (e *Engine) Aggregate(principal string, identity *domain.UserProfile, tokens []domain.Token) *domain.CreatorPerformance {
	if len(tokens) == 0 || identity == nil {
		return nil
	}

	now := e.now()

	perf := &domain.CreatorPerformance{
		Principal: principal,
		Username:  identity.Username,
		Image:     identity.Image,
	}

	var maxVolume int64
	for i := range tokens {
		t := &tokens[i]
		Enrich(t, now, e.rule)

		if t.Volume > 0 {
			perf.TotalVolume += t.Volume
		}
		if t.Volume > maxVolume {
			maxVolume = t.Volume
		}
		if t.IsActive {
			perf.ActiveTokens++
		}

		perf.TotalHolders += t.HolderCount
		perf.TotalTrades += t.Trades()

		if t.CreatedTime.After(perf.LastTokenCreated) {
			perf.LastTokenCreated = t.CreatedTime
		}
	}

	perf.TotalTokens = len(tokens)
	perf.BTCVolume = float64(perf.TotalVolume) / rawPerBTC
	perf.SuccessRate = float64(perf.ActiveTokens) / float64(perf.TotalTokens) * 100

	// volume-normalized, activity-weighted blend; sort key only, never shown
	if maxVolume < 1 {
		maxVolume = 1
	}
	perf.WeightedScore = 0.6*(float64(perf.TotalVolume)/float64(maxVolume)) +
		0.4*(float64(perf.ActiveTokens)/float64(perf.TotalTokens))

	perf.ConfidenceScore = e.confidence(perf)

	perf.Tokens = topByPrice(tokens, e.maxTracked)

	return perf
}

// Log-dampened blend: volume/holders/trades are heavy-tailed, linear scaling
// would let a handful of extreme creators dominate every score.
func (e *Engine) confidence(p *domain.CreatorPerformance) float64 {
	successScore := math.Min(100, p.SuccessRate)
	volumeScore := math.Min(100, math.Log10(float64(p.TotalVolume)+1)*10)
	holdersScore := math.Min(100, math.Log10(float64(p.TotalHolders)+1)*33.3)
	tradesScore := math.Min(100, math.Log10(float64(p.TotalTrades)+1)*33.3)

	score := successScore*e.weights.Success +
		volumeScore*e.weights.Volume +
		holdersScore*e.weights.Holders +
		tradesScore*e.weights.Trades

	return math.Min(100, math.Max(0, score))
}

// Retained drill-down list: top n by descending price_in_sats
func topByPrice(tokens []domain.Token, n int) []domain.Token {
	cp := make([]domain.Token, len(tokens))
	copy(cp, tokens)

	sort.SliceStable(cp, func(i, j int) bool {
		return cp[i].PriceInSats > cp[j].PriceInSats
	})

	if len(cp) > n {
		cp = cp[:n]
	}
	return cp
}
