package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/MimeLyc/subs-ai/internal/batch"
	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/translator"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

type ErrorType int

const (
	ErrQuota ErrorType = iota
	ErrRefusal
	ErrMismatch
	ErrBatchFailed
	ErrMissingSource
	ErrFileRead
	ErrFileWrite
	ErrConfig
	ErrAPI
	ErrUnknown
)

type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrQuota:
		return "Quota"
	case ErrRefusal:
		return "Refusal"
	case ErrMismatch:
		return "Mismatch"
	case ErrBatchFailed:
		return "BatchFailed"
	case ErrMissingSource:
		return "MissingSource"
	case ErrFileRead:
		return "FileRead"
	case ErrFileWrite:
		return "FileWrite"
	case ErrConfig:
		return "Config"
	case ErrAPI:
		return "API"
	default:
		return "Unknown"
	}
}

type ErrorHandler interface {
	Handle(err error) bool
	GetAdvice(err *Error) string
}

type DefaultErrorHandler struct{}

func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{}
}

func (h *DefaultErrorHandler) Handle(err error) bool {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}

	advice := h.GetAdvice(svcErr)
	log.Error("Error Detail: %v\n advice: %s", err, advice)

	return true
}

// GetAdvice returns error handling advice
func (h *DefaultErrorHandler) GetAdvice(err *Error) string {
	switch err.Type {
	case ErrQuota:
		return "The provider quota is exhausted. Check your usage at https://platform.openai.com/usage; pending jobs are kept and resume on the next run"
	case ErrRefusal:
		return "The model kept stopping before finishing; try a smaller MAX_TOKENS budget or another AI_MODEL"
	case ErrMismatch:
		return "The model kept returning a different number of lines; the request is retried on the next run and logged once it fails repeatedly"
	case ErrBatchFailed:
		return "A batch failed on the provider side; its requests are submitted again on the next run"
	case ErrMissingSource:
		return "No English text subtitle was found; add a .en.srt file next to the media file"
	case ErrFileRead:
		return "Please check file permissions to ensure read access and verify the file is not corrupted"
	case ErrFileWrite:
		return "Please ensure the output directory exists and has write permissions"
	case ErrConfig:
		return "Please check that ~/.subs-ai.env or the environment variables are set correctly"
	case ErrAPI:
		return "Please check if the API key is correct, network connectivity is normal, or review the API service status"
	default:
		return "Please review detailed error information and check relevant configuration and files"
	}
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return NewErrorWithCause(errorType, message, err)
}

// Classify wraps err with the type matching its cause. Errors that already
// carry a type are returned unchanged.
func Classify(err error, message string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	var apiErr *llm.Error
	switch {
	case errors.Is(err, batch.ErrQuotaExceeded), llm.IsQuotaExceeded(err):
		return WrapError(err, ErrQuota, message)
	case errors.Is(err, translator.ErrRefused):
		return WrapError(err, ErrRefusal, message)
	case errors.Is(err, translator.ErrMismatch):
		return WrapError(err, ErrMismatch, message)
	case errors.As(err, &apiErr):
		return WrapError(err, ErrAPI, message)
	default:
		return WrapError(err, ErrUnknown, message)
	}
}

// SafeExecute turns a panic in fn into an error.
func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
