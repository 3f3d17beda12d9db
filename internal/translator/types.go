// Package translator translates request groups with direct provider calls.
package translator

import (
	"context"
	"errors"
)

// Provider answers one translation request. finishReason is "stop" for a
// complete answer.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, userText string) (text string, finishReason string, err error)
}

var (
	// ErrRefused means the provider kept ending without a complete answer.
	ErrRefused = errors.New("provider refused to complete the translation")
	// ErrMismatch means every attempt returned the wrong number of lines.
	ErrMismatch = errors.New("translation line count does not match request")
)
