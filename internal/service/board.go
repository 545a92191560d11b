package service

import (
	"context"
	"errors"
	"fmt"
	"odinboard/internal/domain"
	"odinboard/internal/feed"
	"sort"
	"strings"

	"gitlab.com/nevasik7/alerting/logger"
)

var (
	ErrCreatorNotFound = errors.New("creator not found in current board")
	ErrBadMetric       = errors.New("unknown ranking metric")
	ErrBadTier         = errors.New("unknown confidence tier")
)

// Sort keys accepted by the leaderboard
const (
	MetricConfidence = "confidence"
	MetricWeighted   = "weighted"
	MetricVolume     = "volume"
	MetricSuccess    = "success"
	MetricHolders    = "holders"
	MetricTrades     = "trades"
	MetricRecent     = "recent"
)

type StateProvider interface {
	View() feed.View
}

type HealthChecker interface {
	Health(ctx context.Context) error
}

type BoardQuery struct {
	Metric string
	Tier   string
	Limit  int
	Offset int
}

/*
	Ranking/filtering over the pipeline's committed state.
	Pure over already-aggregated data; it never triggers aggregation itself.
*/

type BoardService struct {
	log        logger.Logger
	state      StateProvider
	thresholds domain.TierThresholds

	// dependency health, keyed by name (redis, clickhouse, nats)
	deps map[string]HealthChecker
}

func NewBoardService(log logger.Logger, state StateProvider, thresholds domain.TierThresholds) *BoardService {
	return &BoardService{
		log:        log,
		state:      state,
		thresholds: thresholds,
		deps:       make(map[string]HealthChecker),
	}
}

func (s *BoardService) RegisterDependency(name string, hc HealthChecker) {
	if hc != nil {
		s.deps[name] = hc
	}
}

func (s *BoardService) Thresholds() domain.TierThresholds {
	return s.thresholds
}

// Leaderboard sorts and slices the distinct creator set by the selected
// metric and confidence tier. Rank is 1-based and contiguous within the
// sorted result set, assigned before the offset/limit slice.
func (s *BoardService) Leaderboard(q BoardQuery) ([]domain.CreatorPerformance, error) {
	metric := q.Metric
	if metric == "" {
		metric = MetricConfidence
	}

	less, ok := comparators[metric]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadMetric, q.Metric)
	}

	tier, ok := domain.ParseTier(q.Tier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadTier, q.Tier)
	}

	creators := s.distinctCreators()

	if tier != "" {
		filtered := creators[:0]
		for _, c := range creators {
			if domain.TierFor(c.ConfidenceScore, s.thresholds) == tier {
				filtered = append(filtered, c)
			}
		}
		creators = filtered
	}

	sort.SliceStable(creators, func(i, j int) bool {
		return less(&creators[i], &creators[j])
	})

	for i := range creators {
		creators[i].Rank = i + 1
	}

	if q.Offset > 0 {
		if q.Offset >= len(creators) {
			return []domain.CreatorPerformance{}, nil
		}
		creators = creators[q.Offset:]
	}
	if q.Limit > 0 && len(creators) > q.Limit {
		creators = creators[:q.Limit]
	}

	return creators, nil
}

func (s *BoardService) Creator(principal string) (*domain.CreatorPerformance, error) {
	view := s.state.View()
	for i := range view.Tokens {
		perf := view.Tokens[i].Creator
		if perf != nil && perf.Principal == principal {
			cp := *perf
			return &cp, nil
		}
	}
	return nil, ErrCreatorNotFound
}

// Feed exposes the merged token list with its transient arrival highlight
func (s *BoardService) Feed() feed.View {
	return s.state.View()
}

// distinctCreators copies one record per principal out of the current view
func (s *BoardService) distinctCreators() []domain.CreatorPerformance {
	view := s.state.View()

	seen := make(map[string]struct{}, len(view.Tokens))
	out := make([]domain.CreatorPerformance, 0, len(view.Tokens))

	for i := range view.Tokens {
		perf := view.Tokens[i].Creator
		if perf == nil {
			continue
		}
		if _, dup := seen[perf.Principal]; dup {
			continue
		}
		seen[perf.Principal] = struct{}{}
		out = append(out, *perf)
	}

	return out
}

// descending comparators per metric; recent means newest lastTokenCreated first
var comparators = map[string]func(a, b *domain.CreatorPerformance) bool{
	MetricConfidence: func(a, b *domain.CreatorPerformance) bool { return a.ConfidenceScore > b.ConfidenceScore },
	MetricWeighted:   func(a, b *domain.CreatorPerformance) bool { return a.WeightedScore > b.WeightedScore },
	MetricVolume:     func(a, b *domain.CreatorPerformance) bool { return a.TotalVolume > b.TotalVolume },
	MetricSuccess:    func(a, b *domain.CreatorPerformance) bool { return a.SuccessRate > b.SuccessRate },
	MetricHolders:    func(a, b *domain.CreatorPerformance) bool { return a.TotalHolders > b.TotalHolders },
	MetricTrades:     func(a, b *domain.CreatorPerformance) bool { return a.TotalTrades > b.TotalTrades },
	MetricRecent:     func(a, b *domain.CreatorPerformance) bool { return a.LastTokenCreated.After(b.LastTokenCreated) },
}

func (s *BoardService) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, len(s.deps))

	for name, hc := range s.deps {
		if err := hc.Health(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("%s connection error: %v", name, err))
		}
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	s.log.Debugf("All dependency check passed")
	return nil
}
