package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubExecutor struct {
	token   string
	err     error
	queried bool
	exec    struct {
		query string
		args  []any
	}
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.exec.query = query
	s.exec.args = args
	return pgconn.CommandTag{}, s.err
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.queried = true
	return stubRow{token: s.token, err: s.err}
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

type stubRow struct {
	token string
	err   error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 0 {
		return errors.New("no dest")
	}
	ptr, ok := dest[0].(*string)
	if !ok {
		return errors.New("invalid dest")
	}
	*ptr = r.token
	return nil
}

func TestToken(t *testing.T) {
	store := NewStore(&stubExecutor{token: " abc123 "})
	key, err := store.Token(context.Background(), ProviderBanana)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "abc123" {
		t.Fatalf("expected abc123, got %q", key)
	}
}

func TestTokenNoRows(t *testing.T) {
	store := NewStore(&stubExecutor{err: pgx.ErrNoRows})
	key, err := store.Token(context.Background(), ProviderOpenAI)
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if key != "" {
		t.Fatalf("expected empty key, got %q", key)
	}
}

func TestTokenPropagatesErrors(t *testing.T) {
	boom := errors.New("connection reset")
	store := NewStore(&stubExecutor{err: boom})
	if _, err := store.Token(context.Background(), ProviderBanana); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped connection error", err)
	}
}

func TestUpsert(t *testing.T) {
	exec := &stubExecutor{}
	store := NewStore(exec)
	if err := store.Upsert(context.Background(), " Banana ", "secret"); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if len(exec.exec.args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(exec.exec.args))
	}
	if v, ok := exec.exec.args[0].(string); !ok || v != ProviderBanana {
		t.Fatalf("provider arg = %T %v", exec.exec.args[0], exec.exec.args[0])
	}
	if v, ok := exec.exec.args[1].(string); !ok || v != "secret" {
		t.Fatalf("expected secret argument, got %T %v", exec.exec.args[1], exec.exec.args[1])
	}
}

func TestUpsertRejects(t *testing.T) {
	store := NewStore(&stubExecutor{})
	if err := store.Upsert(context.Background(), ProviderOpenAI, " "); err == nil {
		t.Fatal("expected error for empty key")
	}
	if err := store.Upsert(context.Background(), "gemini", "k"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestResolvePrefersFallback(t *testing.T) {
	exec := &stubExecutor{token: "stored"}
	store := NewStore(exec)
	got, err := store.Resolve(context.Background(), ProviderBanana, " from-env ")
	if err != nil || got != "from-env" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
	if exec.queried {
		t.Fatalf("Resolve queried the store despite a fallback")
	}
	got, err = store.Resolve(context.Background(), ProviderBanana, "")
	if err != nil || got != "stored" {
		t.Fatalf("Resolve = %q, %v", got, err)
	}
	var nilStore *Store
	if got, err := nilStore.Resolve(context.Background(), ProviderBanana, ""); err != nil || got != "" {
		t.Fatalf("nil store Resolve = %q, %v", got, err)
	}
}
