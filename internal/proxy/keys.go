package proxy

import "fmt"

// Canonical cache keys per logical resource. Key shape is part of the
// invalidation contract: POST /api/invalidate-cache takes these verbatim.

func TokensKey(sort string, limit int) string {
	if sort == "" {
		sort = "none"
	}
	return fmt.Sprintf("tokens:%s:%d", sort, limit)
}

func TokenKey(id string) string {
	return "token:" + id
}

func TradesKey(id string, limit int) string {
	return fmt.Sprintf("trades:%s:%d", id, limit)
}

func HoldersKey(id string) string {
	return "holders:" + id
}

func CreatorTokensKey(principal string, limit int) string {
	return fmt.Sprintf("creator-tokens:%s:%d", principal, limit)
}

func UserKey(principal string) string {
	return "user:" + principal
}

func UserBalancesKey(principal string, lp bool, limit int) string {
	return fmt.Sprintf("balances:%s:%t:%d", principal, lp, limit)
}

func NewestTokensKey() string {
	return "newest-tokens"
}

func OlderRecentTokensKey(limit int) string {
	return fmt.Sprintf("older-recent-tokens:%d", limit)
}
