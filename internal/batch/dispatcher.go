package batch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/MimeLyc/subs-ai/internal/jobs"
	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/state"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

const uploadName = "subs-ai-batch.jsonl"

// Dispatcher collects untranslated requests across files and submits them
// in chunks.
type Dispatcher struct {
	provider    Provider
	state       *state.State
	newRequest  RequestBuilder
	system      string
	MaxPerBatch int

	queue  []string
	queued map[string]struct{}
	newID  func() string
}

func NewDispatcher(provider Provider, st *state.State, newRequest RequestBuilder, systemPrompt string) *Dispatcher {
	return &Dispatcher{
		provider:    provider,
		state:       st,
		newRequest:  newRequest,
		system:      systemPrompt,
		MaxPerBatch: MaxPerBatch,
		queued:      make(map[string]struct{}),
		newID:       uuid.NewString,
	}
}

// Add queues content for the next Flush. Content that is cached, already in
// an open job or already queued is ignored. It reports whether content was
// added.
func (d *Dispatcher) Add(content string) bool {
	if _, ok := d.queued[content]; ok {
		return false
	}
	if _, ok := d.state.Translations.Lookup(content); ok {
		return false
	}
	if d.state.Jobs.IsQueued(content) {
		return false
	}
	d.queue = append(d.queue, content)
	d.queued[content] = struct{}{}
	return true
}

// Len is the number of requests waiting for Flush.
func (d *Dispatcher) Len() int {
	return len(d.queue)
}

// Flush submits the queue in chunks of MaxPerBatch and records one job per
// chunk. The job document is saved after every chunk so a crash never loses
// a submitted batch. It reports whether any job was created.
func (d *Dispatcher) Flush(ctx context.Context) (bool, error) {
	if len(d.queue) == 0 {
		return false, nil
	}
	size := d.MaxPerBatch
	if size <= 0 || size > MaxPerBatch {
		size = MaxPerBatch
	}

	log.Info("Batching %d requests", len(d.queue))
	created := false
	for len(d.queue) > 0 {
		n := min(size, len(d.queue))
		chunk := d.queue[:n]

		job, err := d.submit(ctx, chunk)
		if job != nil {
			created = true
			for _, content := range chunk {
				delete(d.queued, content)
			}
			d.queue = d.queue[n:]
		}
		if err != nil {
			return created, err
		}
	}
	d.queue = nil
	return created, nil
}

func (d *Dispatcher) submit(ctx context.Context, chunk []string) (*jobs.Job, error) {
	lines := make([]llm.BatchRequest, len(chunk))
	requests := make([]jobs.Request, len(chunk))
	for i, content := range chunk {
		id := d.newID()
		lines[i] = llm.BatchRequest{
			CustomID: id,
			Method:   http.MethodPost,
			URL:      llm.BatchEndpoint,
			Body:     d.newRequest(d.system, content),
		}
		requests[i] = jobs.Request{Content: content, ID: id}
	}

	fileID, err := d.provider.UploadBatchFile(ctx, uploadName, lines)
	if err != nil {
		return nil, fmt.Errorf("upload batch of %d requests: %w", len(chunk), err)
	}
	created, err := d.provider.CreateBatch(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("create batch for file %s: %w", fileID, err)
	}

	job, err := d.state.Jobs.Enqueue(created.ID, fileID, jobs.Status(created.Status), requests)
	if err != nil {
		return nil, fmt.Errorf("record batch %s: %w", created.ID, err)
	}
	if err := d.state.FlushJobs(ctx); err != nil {
		return job, err
	}
	log.Debug("Submitted batch %s with %d requests", job.ID, len(requests))
	return job, nil
}
