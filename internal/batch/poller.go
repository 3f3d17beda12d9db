package batch

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MimeLyc/subs-ai/internal/jobs"
	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/quarantine"
	"github.com/MimeLyc/subs-ai/internal/segment"
	"github.com/MimeLyc/subs-ai/internal/state"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

// PollResult summarizes one pass over the pending jobs.
type PollResult struct {
	Completed  int // jobs retired with an output file
	Failed     int // jobs dropped without output
	Resolved   int // requests stored in the cache
	Mismatched int // requests whose line count did not match
	// JobCompleted is set when at least one job produced output, which means
	// files may now be assembled.
	JobCompleted bool
}

// Poller checks pending jobs and reconciles finished ones.
type Poller struct {
	provider Provider
	state    *state.State
	policy   *quarantine.Policy
}

func NewPoller(provider Provider, st *state.State, policy *quarantine.Policy) *Poller {
	return &Poller{provider: provider, state: st, policy: policy}
}

// Poll visits every pending job once. Completed and dead jobs are removed;
// their unresolved requests are left for a later dispatch. State is flushed
// once at the end of the pass, or immediately before returning
// ErrQuotaExceeded.
func (p *Poller) Poll(ctx context.Context) (PollResult, error) {
	var result PollResult

	pending := p.state.Jobs.Pending()
	if len(pending) == 0 {
		log.Info("No pending jobs")
		return result, nil
	}

	for _, job := range pending {
		if err := p.pollJob(ctx, job, &result); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				log.Error("Quota exceeded. Check your usage at https://platform.openai.com/usage")
				if flushErr := p.state.Flush(ctx); flushErr != nil {
					return result, errors.Join(err, flushErr)
				}
				return result, err
			}
			log.Error("Failed to check job %s: %v", job.ID, err)
		}
	}

	if err := p.state.Flush(ctx); err != nil {
		return result, err
	}
	return result, nil
}

func (p *Poller) pollJob(ctx context.Context, job *jobs.Job, result *PollResult) error {
	batch, err := p.provider.RetrieveBatch(ctx, job.ID)
	if err != nil {
		if llm.IsQuotaExceeded(err) {
			return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return err
	}

	status := jobs.Status(batch.Status)
	switch {
	case status == jobs.StatusCompleted && batch.OutputFileID == "":
		p.state.Jobs.Remove(job.ID)
		result.Failed++
		if batch.ErrorFileID == "" {
			log.Error("Job %s completed without output or error file", job.ID)
			return nil
		}
		return p.reportErrors(ctx, job, batch.ErrorFileID)

	case status == jobs.StatusCompleted:
		if batch.ErrorFileID != "" {
			if err := p.reportErrors(ctx, job, batch.ErrorFileID); err != nil {
				return err
			}
		}
		return p.reconcile(ctx, job, batch.OutputFileID, result)

	case status.Dead():
		log.Error("Job failed: %s (%s)", job.ID, status)
		p.state.Jobs.Remove(job.ID)
		result.Failed++
		return nil

	default:
		p.state.Jobs.SetStatus(job.ID, status)
		return nil
	}
}

// reportErrors logs every line of an error file. A quota line is fatal.
func (p *Poller) reportErrors(ctx context.Context, job *jobs.Job, fileID string) error {
	data, err := p.provider.FileContent(ctx, fileID)
	if err != nil {
		return fmt.Errorf("download error file %s: %w", fileID, err)
	}

	lines, err := parseResults(data)
	for _, line := range lines {
		msg := line.ErrorMessage()
		if llm.IsQuotaMessage(msg) {
			return fmt.Errorf("%w: job %s: %s", ErrQuotaExceeded, job.ID, msg)
		}
		if msg == "" {
			msg = "unknown error"
		}
		log.Error("Job %s request %s failed: %s", job.ID, line.CustomID, msg)
	}
	if err != nil {
		log.Warn("Job %s error file: %v", job.ID, err)
	}
	return nil
}

// reconcile stores every well-formed result of a completed job and retires
// the job. Malformed results bump the error counter instead.
func (p *Poller) reconcile(ctx context.Context, job *jobs.Job, fileID string, result *PollResult) error {
	data, err := p.provider.FileContent(ctx, fileID)
	if err != nil {
		return fmt.Errorf("download output file %s: %w", fileID, err)
	}

	lines, parseErr := parseResults(data)
	if parseErr != nil {
		log.Warn("Job %s output file: %v", job.ID, parseErr)
	}

	byID := make(map[string]int, len(job.Requests))
	for i, req := range job.Requests {
		if req.ID != "" {
			byID[req.ID] = i
		}
	}
	consumed := make([]bool, len(job.Requests))

	success := 0
	for i, line := range lines {
		idx, ok := byID[line.CustomID]
		if !ok {
			// Submission order is only trusted when there is no id to match on.
			if line.CustomID != "" && len(byID) > 0 {
				log.Warn("Job %s returned unknown custom_id %s", job.ID, line.CustomID)
				continue
			}
			if i >= len(job.Requests) {
				log.Warn("Job %s returned more results than requests", job.ID)
				break
			}
			idx = i
		}
		if consumed[idx] {
			log.Warn("Job %s returned request %d twice", job.ID, idx)
			continue
		}
		consumed[idx] = true
		req := job.Requests[idx]

		if msg := line.ErrorMessage(); msg != "" {
			if llm.IsQuotaMessage(msg) {
				return fmt.Errorf("%w: job %s: %s", ErrQuotaExceeded, job.ID, msg)
			}
			log.Error("Job %s request %s failed: %s", job.ID, line.CustomID, msg)
			continue
		}

		output := line.Content()
		translated := segment.SplitNumbered(output)
		if len(translated) != len(segment.SplitNumbered(req.Content)) {
			count := p.policy.Mismatch(req.Content, output)
			log.Debug("Line count mismatch in job %s (%d failures)", job.ID, count)
			result.Mismatched++
			continue
		}

		if err := p.state.Translations.Store(req.Content, translated); err != nil {
			log.Error("Failed to cache translation from job %s: %v", job.ID, err)
			continue
		}
		p.policy.Resolved(req.Content)
		log.Debug("Segment translated successfully")
		success++
	}

	p.state.Jobs.Remove(job.ID)
	result.Completed++
	result.Resolved += success
	result.JobCompleted = true
	log.Info("Job: %s completed: %d/%d", job.ID, success, len(job.Requests))
	return nil
}

// parseResults decodes a JSONL result file. Undecodable lines are skipped and
// reported in the returned error.
func parseResults(data []byte) ([]llm.BatchResult, error) {
	var ret []llm.BatchResult
	var errs []error

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var line llm.BatchResult
		if err := json.Unmarshal(raw, &line); err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}
		ret = append(ret, line)
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err)
	}
	return ret, errors.Join(errs...)
}
