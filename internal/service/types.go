package service

import (
	"context"

	"github.com/MimeLyc/subs-ai/internal/batch"
	"github.com/MimeLyc/subs-ai/internal/media"
	"github.com/MimeLyc/subs-ai/internal/segment"
	"github.com/MimeLyc/subs-ai/internal/subtitle"
)

type FileStatus string

const (
	StatusTranslated FileStatus = "translated"
	StatusPending    FileStatus = "pending"
	StatusSkipped    FileStatus = "skipped"
	StatusFailed     FileStatus = "failed"
)

// FileResult is the outcome of one TranslatePath call.
type FileResult struct {
	Path   string
	Status FileStatus
	Reason string
	// Remaining counts the groups that are still unresolved.
	Remaining int
	// Cause classifies a skip that needs the user's attention.
	Cause *Error
}

// Extractor finds an English subtitle inside a media container.
type Extractor interface {
	Extract(ctx context.Context, mediaPath string) (media.Extraction, error)
}

// GroupTranslator resolves requests synchronously.
type GroupTranslator interface {
	TranslateGroups(ctx context.Context, requests []string) (map[string][]string, error)
}

// Queue accepts requests for the next batch submission.
type Queue interface {
	Add(content string) bool
}

// Dispatcher is the batch side of a Queue.
type Dispatcher interface {
	Queue
	Flush(ctx context.Context) (bool, error)
	// Len counts requests added but not yet submitted.
	Len() int
}

// Poller reconciles submitted batch jobs.
type Poller interface {
	Poll(ctx context.Context) (batch.PollResult, error)
}

// source is what one run remembers about a media path.
type source struct {
	skip    bool
	reason  string
	cause   *Error
	path    string
	entries []subtitle.Entry
	groups  []segment.Group
}
