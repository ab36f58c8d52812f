package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"stylize/internal/domain"
	"stylize/internal/middleware"
	"stylize/internal/pipeline"
)

const maxBodyBytes = 64 << 10

type generateRequest struct {
	Prompt   string `json:"prompt"`
	Style    string `json:"style"`
	Size     string `json:"size"`
	UploadID string `json:"upload_id"`
}

type regenerateRequest struct {
	PromptDelta string `json:"prompt_delta"`
	LockSeed    bool   `json:"lock_seed"`
}

type jobAccepted struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

func (a *App) CreateGeneration(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !a.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		a.error(w, http.StatusBadRequest, domain.CodeInvalidPrompt, "prompt is required")
		return
	}
	jobID, err := a.Generations.SubmitGeneration(r.Context(), pipeline.GenerationRequest{
		UserID:    middleware.UserIDFromContext(r.Context()),
		Prompt:    req.Prompt,
		Style:     req.Style,
		Size:      req.Size,
		UploadRef: req.UploadID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.accepted(w, jobID)
}

func (a *App) Regenerate(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "BAD_REQUEST", "job_id required")
		return
	}
	var req regenerateRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	newID, err := a.Generations.SubmitRegeneration(r.Context(), pipeline.RegenerationRequest{
		UserID:        middleware.UserIDFromContext(r.Context()),
		OriginalJobID: jobID,
		PromptDelta:   req.PromptDelta,
		LockSeed:      req.LockSeed,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.accepted(w, newID)
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "BAD_REQUEST", "job_id required")
		return
	}
	st, err := a.Generations.GetStatus(r.Context(), jobID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if st.State.Terminal() {
		w.Header().Set("Cache-Control", "public, max-age=3600")
	} else {
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	}
	a.json(w, http.StatusOK, st)
}

func (a *App) accepted(w http.ResponseWriter, jobID string) {
	w.Header().Set("Location", "/v1/generations/"+jobID)
	a.json(w, http.StatusAccepted, jobAccepted{JobID: jobID, StatusURL: "/v1/generations/" + jobID})
}

// decode reads a JSON body into v. With optional set an empty body is
// accepted and leaves v untouched.
func (a *App) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return true
	}
	if err != nil {
		a.error(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload")
		return false
	}
	return true
}
