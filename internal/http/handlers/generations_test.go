package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"stylize/internal/domain"
	"stylize/internal/middleware"
	"stylize/internal/pipeline"
)

type fakeService struct {
	gotGen   pipeline.GenerationRequest
	gotRegen pipeline.RegenerationRequest
	id       string
	status   *domain.JobStatus
	err      error
}

func (f *fakeService) SubmitGeneration(ctx context.Context, req pipeline.GenerationRequest) (string, error) {
	f.gotGen = req
	return f.id, f.err
}

func (f *fakeService) SubmitRegeneration(ctx context.Context, req pipeline.RegenerationRequest) (string, error) {
	f.gotRegen = req
	return f.id, f.err
}

func (f *fakeService) GetStatus(ctx context.Context, jobID string) (*domain.JobStatus, error) {
	return f.status, f.err
}

func newTestRouter(svc *fakeService) http.Handler {
	app := NewApp(svc, zerolog.Nop())
	r := chi.NewRouter()
	r.Post("/v1/generations", app.CreateGeneration)
	r.Get("/v1/generations/{job_id}", app.GenerationStatus)
	r.Post("/v1/generations/{job_id}/regenerate", app.Regenerate)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-123"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestCreateGenerationAccepted(t *testing.T) {
	svc := &fakeService{id: "job-1"}
	rec := do(t, newTestRouter(svc), http.MethodPost, "/v1/generations",
		`{"prompt":"a cat in a garden","style":"anime","size":"512x512","upload_id":"up-1"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d (%s)", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	var resp jobAccepted
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID != "job-1" || resp.StatusURL != "/v1/generations/job-1" {
		t.Fatalf("response = %+v", resp)
	}
	want := pipeline.GenerationRequest{UserID: "user-123", Prompt: "a cat in a garden", Style: "anime", Size: "512x512", UploadRef: "up-1"}
	if svc.gotGen != want {
		t.Fatalf("request = %+v, want %+v", svc.gotGen, want)
	}
}

func TestCreateGenerationRejectsBadPayload(t *testing.T) {
	for _, body := range []string{`{not json`, `{"prompt":"  "}`} {
		rec := do(t, newTestRouter(&fakeService{}), http.MethodPost, "/v1/generations", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s status = %d, want 400", body, rec.Code)
		}
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		wantCode string
	}{
		{domain.NewError(domain.KindInvalidPrompt, "prompt too short"), http.StatusBadRequest, domain.CodeInvalidPrompt},
		{domain.NewError(domain.KindSafetyViolation, "content contains restricted term: gore"), http.StatusBadRequest, domain.CodeSafetyViolation},
		{domain.NewError(domain.KindInvalidState, "can only regenerate successful jobs"), http.StatusBadRequest, domain.CodeInvalidState},
		{domain.NewError(domain.KindAccessDenied, "access denied"), http.StatusForbidden, domain.CodeAccessDenied},
		{domain.NewError(domain.KindNotFound, "job not found"), http.StatusNotFound, domain.CodeNotFound},
		{domain.NewError(domain.KindRateLimited, "rate limit exceeded"), http.StatusTooManyRequests, domain.CodeRateLimit},
		{domain.NewError(domain.KindTooManyActive, "too many active jobs (max 3)"), http.StatusTooManyRequests, domain.CodeQuotaExceeded},
		{errors.New("db down"), http.StatusInternalServerError, domain.CodeServerError},
	}
	for _, tc := range tests {
		rec := do(t, newTestRouter(&fakeService{err: tc.err}), http.MethodPost, "/v1/generations", `{"prompt":"a cat"}`)
		if rec.Code != tc.status {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.status)
		}
		detail := decodeError(t, rec)
		if detail.Code != tc.wantCode {
			t.Fatalf("%v: code = %q, want %q", tc.err, detail.Code, tc.wantCode)
		}
		if tc.status == http.StatusInternalServerError && strings.Contains(detail.Message, "db down") {
			t.Fatalf("internal error leaked: %q", detail.Message)
		}
	}
}

func TestRegenerate(t *testing.T) {
	svc := &fakeService{id: "job-2"}
	rec := do(t, newTestRouter(svc), http.MethodPost, "/v1/generations/job-1/regenerate", `{"prompt_delta":"+with a hat","lock_seed":true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	want := pipeline.RegenerationRequest{UserID: "user-123", OriginalJobID: "job-1", PromptDelta: "+with a hat", LockSeed: true}
	if svc.gotRegen != want {
		t.Fatalf("request = %+v, want %+v", svc.gotRegen, want)
	}

	rec = do(t, newTestRouter(svc), http.MethodPost, "/v1/generations/job-1/regenerate", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("empty body status = %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.gotRegen.PromptDelta != "" || svc.gotRegen.LockSeed {
		t.Fatalf("empty body request = %+v", svc.gotRegen)
	}
}

func TestGenerationStatusCacheHeaders(t *testing.T) {
	seed := int64(9)
	tests := []struct {
		status *domain.JobStatus
		cache  string
	}{
		{&domain.JobStatus{JobID: "j", State: domain.JobStateRunning, Progress: 20}, "no-cache, no-store, must-revalidate"},
		{&domain.JobStatus{JobID: "j", State: domain.JobStateSuccess, Progress: 100, URL: "http://x/j.png", Seed: &seed}, "public, max-age=3600"},
		{&domain.JobStatus{JobID: "j", State: domain.JobStateFailed, Progress: 20, Error: "boom", ErrorCode: "SERVER_ERROR"}, "public, max-age=3600"},
	}
	for _, tc := range tests {
		rec := do(t, newTestRouter(&fakeService{status: tc.status}), http.MethodGet, "/v1/generations/j", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Cache-Control"); got != tc.cache {
			t.Fatalf("%s Cache-Control = %q, want %q", tc.status.State, got, tc.cache)
		}
		var got domain.JobStatus
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.State != tc.status.State || got.Progress != tc.status.Progress || got.URL != tc.status.URL || got.ErrorCode != tc.status.ErrorCode {
			t.Fatalf("body = %+v, want %+v", got, tc.status)
		}
	}
}

func TestHealth(t *testing.T) {
	app := NewApp(&fakeService{}, zerolog.Nop())
	rec := httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	app.HealthCheck = func(ctx context.Context) error { return errors.New("db down") }
	rec = httptest.NewRecorder()
	app.Health(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy status = %d", rec.Code)
	}
}
