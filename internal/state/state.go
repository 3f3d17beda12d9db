// Package state owns the process-wide job store, translation cache and error
// counters together with their load and flush lifecycle.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/MimeLyc/subs-ai/internal/cache"
	"github.com/MimeLyc/subs-ai/internal/jobs"
	"github.com/MimeLyc/subs-ai/internal/persistence"
	"github.com/MimeLyc/subs-ai/internal/quarantine"
)

type State struct {
	Jobs         *jobs.Store
	Translations *cache.Translations
	Errors       *quarantine.Counter

	backend persistence.Backend
}

// Load reads all three documents from backend. Missing documents start empty.
func Load(ctx context.Context, backend persistence.Backend) (*State, error) {
	var loadedJobs []*jobs.Job
	if _, err := backend.Load(ctx, persistence.DocJobs, &loadedJobs); err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}
	var translations map[string][]string
	if _, err := backend.Load(ctx, persistence.DocTranslations, &translations); err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	var counts map[string]int
	if _, err := backend.Load(ctx, persistence.DocErrors, &counts); err != nil {
		return nil, fmt.Errorf("load error counts: %w", err)
	}

	return &State{
		Jobs:         jobs.NewStore(loadedJobs),
		Translations: cache.NewTranslations(translations),
		Errors:       quarantine.NewCounter(counts),
		backend:      backend,
	}, nil
}

// FlushJobs rewrites the job document.
func (s *State) FlushJobs(ctx context.Context) error {
	if err := s.backend.Save(ctx, persistence.DocJobs, s.Jobs.Snapshot()); err != nil {
		return fmt.Errorf("save jobs: %w", err)
	}
	return nil
}

// Flush rewrites every document. All saves are attempted even if one fails.
func (s *State) Flush(ctx context.Context) error {
	var errs []error
	if err := s.FlushJobs(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.backend.Save(ctx, persistence.DocTranslations, s.Translations.Snapshot()); err != nil {
		errs = append(errs, fmt.Errorf("save translations: %w", err))
	}
	if err := s.backend.Save(ctx, persistence.DocErrors, s.Errors.Snapshot()); err != nil {
		errs = append(errs, fmt.Errorf("save error counts: %w", err))
	}
	return errors.Join(errs...)
}
