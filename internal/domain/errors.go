package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrStaleTransition = errors.New("job is not in the expected state")
	ErrDuplicateResult = errors.New("a successful job already exists for this prompt")
)

// ErrorKind groups failures by how callers should react to them.
type ErrorKind string

const (
	KindInvalidPrompt   ErrorKind = "invalid_prompt"
	KindSafetyViolation ErrorKind = "safety_violation"
	KindRateLimited     ErrorKind = "rate_limited"
	KindTooManyActive   ErrorKind = "too_many_active"
	KindNotFound        ErrorKind = "not_found"
	KindAccessDenied    ErrorKind = "access_denied"
	KindInvalidState    ErrorKind = "invalid_state"
	KindProvider        ErrorKind = "provider"
	KindTimeout         ErrorKind = "timeout"
	KindStorage         ErrorKind = "storage"
	KindInternal        ErrorKind = "internal"
)

// Error codes recorded on failed jobs and returned in API error bodies.
const (
	CodeRateLimit       = "RATE_LIMIT"
	CodeInvalidPrompt   = "INVALID_PROMPT"
	CodeServerError     = "SERVER_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeSafetyViolation = "SAFETY_VIOLATION"
	CodeQuotaExceeded   = "QUOTA_EXCEEDED"
	CodeProviderError   = "PROVIDER_ERROR"
	CodeUploadError     = "UPLOAD_ERROR"
	CodeDuplicateResult = "DUPLICATE_RESULT"
	CodeNotFound        = "NOT_FOUND"
	CodeAccessDenied    = "ACCESS_DENIED"
	CodeInvalidState    = "INVALID_STATE"
)

var defaultCodes = map[ErrorKind]string{
	KindInvalidPrompt:   CodeInvalidPrompt,
	KindSafetyViolation: CodeSafetyViolation,
	KindRateLimited:     CodeRateLimit,
	KindTooManyActive:   CodeQuotaExceeded,
	KindNotFound:        CodeNotFound,
	KindAccessDenied:    CodeAccessDenied,
	KindInvalidState:    CodeInvalidState,
	KindProvider:        CodeProviderError,
	KindTimeout:         CodeTimeout,
	KindStorage:         CodeUploadError,
	KindInternal:        CodeServerError,
}

// Error is a classified pipeline failure. Two errors match under errors.Is
// when their kinds are equal, so the sentinels below can be used as targets.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

// NewError builds an Error with the default code for kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Code: defaultCodes[kind], Message: message}
}

// WrapError builds an Error with an explicit code around err.
func WrapError(kind ErrorKind, code string, err error) *Error {
	if code == "" {
		code = defaultCodes[kind]
	}
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidPrompt   = NewError(KindInvalidPrompt, "invalid prompt")
	ErrSafetyViolation = NewError(KindSafetyViolation, "prompt contains inappropriate content")
	ErrRateLimited     = NewError(KindRateLimited, "rate limit exceeded")
	ErrTooManyActive   = NewError(KindTooManyActive, "too many active jobs")
	ErrJobNotFound     = NewError(KindNotFound, "job not found")
	ErrAccessDenied    = NewError(KindAccessDenied, "access denied")
	ErrInvalidState    = NewError(KindInvalidState, "job is not in a valid state")
	ErrProvider        = NewError(KindProvider, "provider failure")
	ErrTimeout         = NewError(KindTimeout, "generation timeout")
)

// KindOf returns the kind of err, or KindInternal when err is unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindInternal
}

// CodeOf returns the error code recorded for err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	if errors.Is(err, ErrDuplicateResult) {
		return CodeDuplicateResult
	}
	return defaultCodes[KindOf(err)]
}
