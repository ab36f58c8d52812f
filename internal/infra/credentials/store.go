package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stylize/internal/infra"
	"stylize/internal/sqlinline"
)

// Provider token names.
const (
	ProviderBanana      = "banana"
	ProviderBananaModel = "banana_model"
	ProviderOpenAI      = "openai"
)

// Known lists the provider names accepted by Upsert.
var Known = []string{ProviderBanana, ProviderBananaModel, ProviderOpenAI}

// Entry summarizes a stored token without exposing it.
type Entry struct {
	Provider  string
	UpdatedAt time.Time
}

// Store reads and writes provider API keys in integration_tokens.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored token for provider, or "" when none is saved.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: read %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// Upsert saves token for a known provider.
func (s *Store) Upsert(ctx context.Context, provider, token string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !isKnown(provider) {
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("credentials: token is required")
	}
	raw, err := json.Marshal(map[string]any{"source": "providerkey"})
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw); err != nil {
		return fmt.Errorf("credentials: save %s token: %w", provider, err)
	}
	return nil
}

// List returns the providers that have a stored token.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.sql.Query(ctx, sqlinline.QListIntegrationProviders)
	if err != nil {
		return nil, fmt.Errorf("credentials: list: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Provider, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("credentials: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Resolve returns fallback when it is set, otherwise the stored token.
func (s *Store) Resolve(ctx context.Context, provider, fallback string) (string, error) {
	if v := strings.TrimSpace(fallback); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

func isKnown(provider string) bool {
	for _, p := range Known {
		if p == provider {
			return true
		}
	}
	return false
}
