package upstream

import (
	"encoding/json"
	"fmt"
	"odinboard/internal/domain"
)

// The upstream wraps list responses as {"data": [...], "count": n} but some
// endpoints return a bare array; accept both.
type listEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Count int             `json:"count"`
}

func DecodeTokens(raw []byte) ([]domain.Token, error) {
	var tokens []domain.Token
	if err := json.Unmarshal(raw, &tokens); err == nil {
		return tokens, nil
	}

	var env listEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode token list: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, nil
	}

	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token list data: %w", err)
	}
	return tokens, nil
}

func DecodeToken(raw []byte) (*domain.Token, error) {
	var t domain.Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &t, nil
}

func DecodeUser(raw []byte) (*domain.UserProfile, error) {
	var u domain.UserProfile
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if u.Principal == "" {
		return nil, fmt.Errorf("user payload has no principal")
	}
	return &u, nil
}
