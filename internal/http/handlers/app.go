package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"stylize/internal/domain"
	"stylize/internal/infra"
	"stylize/internal/middleware"
	"stylize/internal/pipeline"
)

// GenerationService is the pipeline surface used by the handlers.
type GenerationService interface {
	SubmitGeneration(ctx context.Context, req pipeline.GenerationRequest) (string, error)
	SubmitRegeneration(ctx context.Context, req pipeline.RegenerationRequest) (string, error)
	GetStatus(ctx context.Context, jobID string) (*domain.JobStatus, error)
}

type App struct {
	Generations GenerationService
	Logger      infra.Logger
	// HealthCheck is optional; a non-nil error reports the service unhealthy.
	HealthCheck func(ctx context.Context) error
}

func NewApp(svc GenerationService, logger infra.Logger) *App {
	return &App{Generations: svc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// fail writes err using the status implied by its kind. Unclassified errors
// are logged and reported without detail.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("http: request failed")
		a.error(w, http.StatusInternalServerError, domain.CodeServerError, "internal server error")
		return
	}
	a.error(w, statusForKind(de.Kind), domain.CodeOf(de), de.Error())
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidPrompt, domain.KindSafetyViolation, domain.KindInvalidState:
		return http.StatusBadRequest
	case domain.KindAccessDenied:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindRateLimited, domain.KindTooManyActive:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
