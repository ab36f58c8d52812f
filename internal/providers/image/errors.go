package image

import (
	"fmt"
	"net/http"
	"strings"

	"stylize/internal/domain"
)

// Classify maps a provider message and HTTP status onto an error code.
// status may be zero when no HTTP response is available.
func Classify(message string, status int) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many requests"), status == http.StatusTooManyRequests:
		return domain.CodeRateLimit
	case strings.Contains(msg, "invalid prompt"), strings.Contains(msg, "prompt too long"), status == http.StatusBadRequest:
		return domain.CodeInvalidPrompt
	case strings.Contains(msg, "server error"), strings.Contains(msg, "internal error"), status == http.StatusInternalServerError:
		return domain.CodeServerError
	case strings.Contains(msg, "timeout"):
		return domain.CodeTimeout
	}
	return domain.CodeServerError
}

// ProviderError builds a classified provider failure.
func ProviderError(provider, message string, status int) error {
	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = "generation failed"
	}
	if status > 0 {
		msg = fmt.Sprintf("%s: status %d: %s", provider, status, msg)
	} else {
		msg = fmt.Sprintf("%s: %s", provider, msg)
	}
	return &domain.Error{
		Kind:    domain.KindProvider,
		Code:    Classify(message, status),
		Message: msg,
	}
}
