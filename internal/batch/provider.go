// Package batch submits translation requests through a provider batch API and
// reconciles finished batches into the translation cache.
package batch

import (
	"context"
	"errors"

	"github.com/MimeLyc/subs-ai/internal/llm"
)

// Provider is the batch half of the provider API.
type Provider interface {
	UploadBatchFile(ctx context.Context, name string, requests []llm.BatchRequest) (string, error)
	CreateBatch(ctx context.Context, inputFileID string) (*llm.Batch, error)
	RetrieveBatch(ctx context.Context, batchID string) (*llm.Batch, error)
	FileContent(ctx context.Context, fileID string) ([]byte, error)
}

// RequestBuilder produces the chat body for one request.
type RequestBuilder func(systemPrompt, userText string) llm.ChatRequest

// ErrQuotaExceeded is fatal: state has been flushed and nothing should retry.
var ErrQuotaExceeded = errors.New("provider quota exceeded")

// MaxPerBatch is the largest number of requests put in one uploaded file.
const MaxPerBatch = 50
