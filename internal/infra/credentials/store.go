// Package credentials keeps provider API keys in the integration_tokens
// table so operators can rotate them without a redeploy.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"storyboard/internal/domain"
	"storyboard/internal/infra"
	"storyboard/internal/sqlinline"
)

const (
	ProviderGemini     = "gemini"
	ProviderOpenAI     = "openai"
	ProviderElevenLabs = "elevenlabs"
)

// Providers lists every provider whose key may be stored.
var Providers = []string{ProviderGemini, ProviderOpenAI, ProviderElevenLabs}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored key for provider, or "" when none is set.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: load %s token: %w", domain.ErrPersistence, provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers the stored key and falls back to the environment value.
func (s *Store) Resolve(ctx context.Context, provider, fallback string) string {
	if s == nil {
		return fallback
	}
	if token, err := s.Token(ctx, provider); err == nil && token != "" {
		return token
	}
	return fallback
}

// SetToken stores key for a known provider.
func (s *Store) SetToken(ctx context.Context, provider, key string, props map[string]any) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !known(provider) {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, provider)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: %s api key is required", domain.ErrValidation, provider)
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, key, raw); err != nil {
		return fmt.Errorf("%w: store %s token: %w", domain.ErrPersistence, provider, err)
	}
	return nil
}

func known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}
