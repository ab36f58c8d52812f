package dalle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"stylize/internal/domain"
	"stylize/internal/providers/image"
)

func TestGenerateDecodesImage(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []any{map[string]any{"b64_json": base64.StdEncoding.EncodeToString([]byte("png-bytes"))}},
		})
	}))
	defer srv.Close()

	p, err := New(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "dall-e-2"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seed := int64(5)
	res, err := p.Generate(context.Background(), image.Request{JobID: "job-1", Prompt: "a cat", Width: 512, Height: 512, Seed: &seed})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if string(res.Data) != "png-bytes" {
		t.Fatalf("data = %q", res.Data)
	}
	if res.Seed == nil || *res.Seed != 5 || res.Model != "dall-e-2" {
		t.Fatalf("result = %+v", res)
	}
	if got["size"] != "512x512" || got["response_format"] != "b64_json" || got["prompt"] != "a cat" {
		t.Fatalf("payload = %v", got)
	}
}

func TestGenerateClassifiesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"Rate limit reached for images","type":"requests"}}`))
	}))
	defer srv.Close()

	p, err := New(Options{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Generate(context.Background(), image.Request{Prompt: "a cat", Width: 1024, Height: 1024})
	if !errors.Is(err, domain.ErrProvider) {
		t.Fatalf("err = %v, want provider error", err)
	}
	if code := domain.CodeOf(err); code != domain.CodeRateLimit {
		t.Fatalf("code = %q, want %q", code, domain.CodeRateLimit)
	}
}

func TestSizeFallsBackForDallE3(t *testing.T) {
	p, err := New(Options{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := p.size(768, 768); got != "1024x1024" {
		t.Fatalf("size = %q, want 1024x1024", got)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
}
