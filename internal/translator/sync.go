package translator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/subs-ai/internal/cache"
	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/quarantine"
	"github.com/MimeLyc/subs-ai/internal/segment"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

const (
	DefaultConcurrency = 10
	DefaultMaxAttempts = 3
)

// Sync translates requests with direct provider calls, a window of
// Concurrency requests at a time.
type Sync struct {
	Provider     Provider
	Translations *cache.Translations
	Policy       *quarantine.Policy
	System       string
	Concurrency  int
	MaxAttempts  int
}

// TranslateGroups translates every request, serving cached ones without a
// call. Each window settles completely before the next starts. The returned
// map holds every request that succeeded; the error joins the failures.
// A quota error stops the run after the current window.
func (s *Sync) TranslateGroups(ctx context.Context, requests []string) (map[string][]string, error) {
	window := s.Concurrency
	if window <= 0 {
		window = DefaultConcurrency
	}

	var (
		mu      sync.Mutex
		results = make(map[string][]string, len(requests))
		errs    []error
	)

	for start := 0; start < len(requests); start += window {
		end := min(start+window, len(requests))

		var g errgroup.Group
		for _, req := range requests[start:end] {
			g.Go(func() error {
				lines, err := s.translate(ctx, req)
				if err != nil {
					if llm.IsQuotaExceeded(err) {
						return err
					}
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					return nil
				}
				mu.Lock()
				results[req] = lines
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
	}

	return results, errors.Join(errs...)
}

func (s *Sync) translate(ctx context.Context, request string) ([]string, error) {
	if lines, ok := s.Translations.Lookup(request); ok {
		return lines, nil
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	want := segment.LineCount(request)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, finishReason, err := s.Provider.Complete(ctx, s.System, request)
		if err != nil {
			return nil, err
		}

		if finishReason != llm.FinishStop && finishReason != "" {
			log.Warn("Translation attempt %d/%d ended with %q", attempt, attempts, finishReason)
			lastErr = fmt.Errorf("%w: finish reason %q", ErrRefused, finishReason)
			continue
		}

		lines := segment.SplitNumbered(text)
		if len(lines) != want {
			count := s.Policy.Mismatch(request, text)
			log.Warn("Translation attempt %d/%d returned %d lines, want %d (%d failures)", attempt, attempts, len(lines), want, count)
			lastErr = fmt.Errorf("%w: got %d lines, want %d", ErrMismatch, len(lines), want)
			continue
		}

		if err := s.Translations.Store(request, lines); err != nil {
			return nil, err
		}
		s.Policy.Resolved(request)
		return lines, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
