package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/subs-ai/internal/batch"
	"github.com/MimeLyc/subs-ai/internal/state"
	"github.com/MimeLyc/subs-ai/pkg/file"
	"github.com/MimeLyc/subs-ai/pkg/icron"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

// Pipeline drives the orchestrator over a set of files. With a Poller and a
// Dispatcher it runs the batch loop; without them every file is translated
// synchronously in a single pass.
type Pipeline struct {
	Orchestrator *FileOrchestrator
	State        *state.State
	Poller       Poller
	Dispatcher   Dispatcher
	PollInterval time.Duration

	group singleflight.Group
	sleep func(ctx context.Context, d time.Duration) error
}

// maxResubmits caps how many times one run resubmits requests released by
// failed batch jobs.
const maxResubmits = 3

// Run processes paths until no batch job is pending. Quota errors stop the run
// with ErrQuota; per-file errors are logged and the file is retried on the
// next pass. Requests released by failed jobs or a failed submission are
// walked again; a run that ends with such requests unsent returns
// ErrBatchFailed. ctx is only checked between passes.
func (p *Pipeline) Run(ctx context.Context, paths []string) error {
	log.Info("Running for %d files", len(paths))
	if p.Poller == nil || p.Dispatcher == nil {
		return p.runSync(ctx, paths)
	}

	first := true
	resubmits := 0
	failed := 0
	var submitErr error
	for {
		polled, err := p.Poller.Poll(ctx)
		if err != nil {
			return Classify(err, "poll batch jobs")
		}

		retry := false
		if polled.Failed > 0 || submitErr != nil {
			failed += polled.Failed
			if resubmits < maxResubmits {
				resubmits++
				retry = true
			}
			if polled.Failed > 0 {
				log.Warn("%v", NewError(ErrBatchFailed, fmt.Sprintf("%d batch jobs failed", polled.Failed)).
					WithContext("resubmit", retry))
			}
		}

		if first || polled.JobCompleted || retry {
			if err := p.walk(ctx, paths); err != nil {
				return err
			}
			submitErr = nil
			if _, err := p.Dispatcher.Flush(ctx); err != nil {
				err = Classify(err, "submit batch")
				if IsErrorType(err, ErrQuota) {
					return err
				}
				log.Error("Failed to submit batch: %v", err)
				submitErr = err
			}
		}
		first = false

		pending := p.State.Jobs.Pending()
		if len(pending) == 0 && submitErr != nil && resubmits < maxResubmits {
			log.Warn("%d requests are not submitted yet, retrying in %s", p.Dispatcher.Len(), p.interval())
			if err := p.wait(ctx, p.interval()); err != nil {
				return err
			}
			continue
		}
		if len(pending) == 0 {
			if err := p.State.Flush(ctx); err != nil {
				return WrapError(err, ErrFileWrite, "save state")
			}
			if unresolved := p.unresolved(submitErr, polled); unresolved != nil {
				return unresolved.WithContext("failed_jobs", failed)
			}
			log.Info("Done!")
			return nil
		}
		log.Info("%d jobs still pending, with %d requests, checking again in %s",
			len(pending), p.State.Jobs.RequestCount(), p.interval())

		if err := p.wait(ctx, p.interval()); err != nil {
			return err
		}
	}
}

// unresolved reports requests left behind when no job is pending anymore.
func (p *Pipeline) unresolved(submitErr error, polled batch.PollResult) *Error {
	if queued := p.Dispatcher.Len(); queued > 0 || submitErr != nil {
		log.Warn("%d requests could not be submitted", queued)
		return NewErrorWithCause(ErrBatchFailed, fmt.Sprintf("%d requests could not be submitted", queued), submitErr)
	}
	if polled.Failed > 0 {
		log.Warn("Requests of %d failed batch jobs are still unresolved", polled.Failed)
		return NewError(ErrBatchFailed, fmt.Sprintf("requests of %d failed batch jobs are still unresolved", polled.Failed))
	}
	return nil
}

func (p *Pipeline) runSync(ctx context.Context, paths []string) error {
	walkErr := p.walk(ctx, paths)
	if err := p.State.Flush(ctx); err != nil {
		return WrapError(err, ErrFileWrite, "save state")
	}
	if walkErr != nil {
		return walkErr
	}
	log.Info("Done!")
	return nil
}

// walk visits every path once. Only quota errors abort the walk.
func (p *Pipeline) walk(ctx context.Context, paths []string) error {
	for _, path := range paths {
		res, err := p.Orchestrator.TranslatePath(ctx, path)
		if err == nil {
			continue
		}
		if IsErrorType(err, ErrQuota) {
			return err
		}
		log.Error("Failed to translate %s (%s): %v", path, res.Status, err)
	}
	return nil
}

func (p *Pipeline) interval() time.Duration {
	if p.PollInterval <= 0 {
		return 30 * time.Second
	}
	return p.PollInterval
}

func (p *Pipeline) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Schedule registers a cron job that rescans dirs and runs the pipeline over
// the media files found. Triggers that fire while a run is in progress join
// that run instead of starting another.
func (p *Pipeline) Schedule(ctx context.Context, c *cron.Cron, cronExpr string, dirs []string) (cron.EntryID, error) {
	if err := icron.Validate(cronExpr); err != nil {
		return 0, WrapError(err, ErrConfig, "schedule watch")
	}

	runFunc := func() {
		_, err, shared := p.group.Do("run", func() (any, error) {
			return nil, SafeExecute(func() error { return p.RunDirs(ctx, dirs) })
		})
		if shared {
			log.Debug("Joined a run already in progress")
		}
		if err != nil {
			log.Error("Scheduled run failed: %v", err)
		}
		if info, infoErr := icron.GetTriggerInfo(cronExpr, time.Now()); infoErr == nil {
			log.Info("Next run at %s", info.Next.Format(time.DateTime))
		}
	}
	return c.AddFunc(cronExpr, runFunc)
}

// RunDirs discovers media files under dirs and runs the pipeline over them
// with a fresh execution cache.
func (p *Pipeline) RunDirs(ctx context.Context, dirs []string) error {
	var paths []string
	for _, dir := range dirs {
		found, err := file.FindMedia(withSlash(dir))
		if err != nil {
			log.Error("Failed to scan %s: %v", dir, err)
			continue
		}
		log.Info("Found %d media files in %s", len(found), dir)
		paths = append(paths, found...)
	}
	p.Orchestrator.Reset()
	if err := p.Run(ctx, paths); err != nil {
		return fmt.Errorf("run over %d files: %w", len(paths), err)
	}
	return nil
}

func withSlash(dir string) string {
	if strings.HasSuffix(dir, "/") {
		return dir
	}
	return dir + "/"
}
