package feed

import (
	"odinboard/internal/domain"
	"sort"
)

type MergeResult struct {
	Tokens  []domain.Token      // created_time descending
	NewIDs  []string            // arrivals since the previous merge, merged order
	Touched map[string]struct{} // creators owning at least one new token
}

// Merge combines the two poll windows into one deduplicated list and diffs
// it against the previous id set. Overlapping ids resolve in favor of the
// newest window (fresher source wins deterministically).
// prevIDs == nil means the very first cycle: NewIDs stays empty by
// definition, an initial load is not "all new".
func Merge(prevIDs map[string]struct{}, newest, older []domain.Token) MergeResult {
	byID := make(map[string]domain.Token, len(newest)+len(older))

	for _, t := range newest {
		byID[t.ID] = t
	}
	for _, t := range older {
		if _, ok := byID[t.ID]; !ok {
			byID[t.ID] = t
		}
	}

	merged := make([]domain.Token, 0, len(byID))
	for _, t := range byID {
		merged = append(merged, t)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].CreatedTime.Equal(merged[j].CreatedTime) {
			return merged[i].ID < merged[j].ID
		}
		return merged[i].CreatedTime.After(merged[j].CreatedTime)
	})

	res := MergeResult{
		Tokens:  merged,
		Touched: make(map[string]struct{}),
	}

	if prevIDs == nil {
		return res
	}

	for _, t := range merged {
		if _, ok := prevIDs[t.ID]; !ok {
			res.NewIDs = append(res.NewIDs, t.ID)
			res.Touched[t.Creator] = struct{}{}
		}
	}

	return res
}

// IDSet of a merged list, input for the next cycle's diff
func IDSet(tokens []domain.Token) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t.ID] = struct{}{}
	}
	return set
}
