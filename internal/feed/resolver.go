package feed

import (
	"context"
	"odinboard/internal/domain"
	"odinboard/internal/proxy"
	"odinboard/internal/score"
	"odinboard/internal/upstream"

	"gitlab.com/nevasik7/alerting/logger"
)

// Resolves one creator's performance record: creator token set + identity
// through the caching proxy, then the aggregation engine.
type CreatorResolver struct {
	log         logger.Logger
	proxy       *proxy.Proxy
	up          *upstream.Client
	engine      *score.Engine
	tokensLimit int
}

func NewCreatorResolver(log logger.Logger, p *proxy.Proxy, up *upstream.Client, engine *score.Engine, tokensLimit int) *CreatorResolver {
	if tokensLimit <= 0 {
		tokensLimit = 100
	}
	return &CreatorResolver{
		log:         log,
		proxy:       p,
		up:          up,
		engine:      engine,
		tokensLimit: tokensLimit,
	}
}

// Resolve returns (nil, nil) for "no data" (zero tokens or identity lookup
// failed) and (nil, err) only when the token list itself cannot be fetched.
func (r *CreatorResolver) Resolve(ctx context.Context, principal string) (*domain.CreatorPerformance, error) {
	rawTokens, err := r.proxy.Resolve(ctx, proxy.CreatorTokensKey(principal, r.tokensLimit), proxy.TTLDefault,
		func(ctx context.Context) ([]byte, error) {
			return r.up.CreatorTokens(ctx, principal, r.tokensLimit)
		})
	if err != nil {
		return nil, err
	}

	tokens, err := upstream.DecodeTokens(rawTokens)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, nil
	}

	var identity *domain.UserProfile
	rawUser, err := r.proxy.Resolve(ctx, proxy.UserKey(principal), proxy.TTLDefault,
		func(ctx context.Context) ([]byte, error) {
			return r.up.User(ctx, principal)
		})
	if err == nil {
		identity, err = upstream.DecodeUser(rawUser)
		if err != nil {
			r.log.Warnf("Failed to decode identity for %s: %v", principal, err)
		}
	} else {
		r.log.Warnf("Identity lookup failed for %s: %v", principal, err)
	}

	// identity == nil -> Aggregate signals "no data" with nil
	return r.engine.Aggregate(principal, identity, tokens), nil
}
