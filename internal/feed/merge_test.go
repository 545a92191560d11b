package feed

import (
	"fmt"
	"odinboard/internal/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenAt(id, creator string, created time.Time) domain.Token {
	return domain.Token{ID: id, Creator: creator, CreatedTime: created}
}

// first cycle ever: everything merges, nothing counts as new
func TestMerge_FirstCycleNoNewIDs(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	older := make([]domain.Token, 0, 5)
	for i := 0; i < 5; i++ {
		older = append(older, tokenAt(fmt.Sprintf("t%d", i), "c1", base.Add(time.Duration(i)*time.Minute)))
	}

	res := Merge(nil, nil, older)

	assert.Len(t, res.Tokens, 5)
	assert.Empty(t, res.NewIDs)
	assert.Empty(t, res.Touched)
}

// second cycle: exactly the arrivals diff against the previous id set
func TestMerge_SecondCycleDetectsArrivals(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var first []domain.Token
	for i := 0; i < 5; i++ {
		first = append(first, tokenAt(fmt.Sprintf("t%d", i), "c1", base.Add(time.Duration(i)*time.Minute)))
	}
	prev := IDSet(first)

	// two old ids fall out of the window, two new ones arrive
	second := []domain.Token{
		tokenAt("t2", "c1", base.Add(2*time.Minute)),
		tokenAt("t3", "c1", base.Add(3*time.Minute)),
		tokenAt("t4", "c1", base.Add(4*time.Minute)),
		tokenAt("n1", "c2", base.Add(10*time.Minute)),
		tokenAt("n2", "c3", base.Add(11*time.Minute)),
	}

	res := Merge(prev, second[3:], second[:3])

	require.Len(t, res.NewIDs, 2)
	assert.ElementsMatch(t, []string{"n1", "n2"}, res.NewIDs)

	assert.Len(t, res.Touched, 2)
	assert.Contains(t, res.Touched, "c2")
	assert.Contains(t, res.Touched, "c3")
}

// overlapping ids resolve in favor of the newest window
func TestMerge_NewestWindowWins(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	fresh := tokenAt("tok", "c1", created)
	fresh.Price = 999
	stale := tokenAt("tok", "c1", created)
	stale.Price = 1

	res := Merge(nil, []domain.Token{fresh}, []domain.Token{stale})

	require.Len(t, res.Tokens, 1)
	assert.Equal(t, int64(999), res.Tokens[0].Price)
}

func TestMerge_SortedByCreatedTimeDesc(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	newest := []domain.Token{
		tokenAt("b", "c1", base.Add(3*time.Minute)),
		tokenAt("a", "c1", base.Add(5*time.Minute)),
	}
	older := []domain.Token{
		tokenAt("c", "c1", base.Add(1*time.Minute)),
		tokenAt("d", "c1", base.Add(4*time.Minute)),
	}

	res := Merge(nil, newest, older)

	require.Len(t, res.Tokens, 4)
	for i := 1; i < len(res.Tokens); i++ {
		assert.False(t, res.Tokens[i].CreatedTime.After(res.Tokens[i-1].CreatedTime),
			"tokens must be created_time descending")
	}
	assert.Equal(t, "a", res.Tokens[0].ID)
	assert.Equal(t, "c", res.Tokens[3].ID)
}

// same created_time falls back to id order so the list is stable across runs
func TestMerge_TieBreakByID(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	res := Merge(nil,
		[]domain.Token{tokenAt("z", "c1", created), tokenAt("a", "c1", created)},
		[]domain.Token{tokenAt("m", "c1", created)},
	)

	require.Len(t, res.Tokens, 3)
	assert.Equal(t, "a", res.Tokens[0].ID)
	assert.Equal(t, "m", res.Tokens[1].ID)
	assert.Equal(t, "z", res.Tokens[2].ID)
}

// merging twice with identical inputs and no time advance changes nothing
func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	newest := []domain.Token{tokenAt("a", "c1", base.Add(time.Minute))}
	older := []domain.Token{tokenAt("b", "c2", base)}

	first := Merge(nil, newest, older)
	second := Merge(IDSet(first.Tokens), newest, older)

	assert.Equal(t, first.Tokens, second.Tokens)
	assert.Empty(t, second.NewIDs)
	assert.Empty(t, second.Touched)
}
