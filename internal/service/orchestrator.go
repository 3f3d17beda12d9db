package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MimeLyc/subs-ai/internal/media"
	"github.com/MimeLyc/subs-ai/internal/segment"
	"github.com/MimeLyc/subs-ai/internal/state"
	"github.com/MimeLyc/subs-ai/internal/subtitle"
	"github.com/MimeLyc/subs-ai/pkg/log"
)

// FileOrchestrator turns one media path into a translated sidecar once every
// request group of its subtitle has a cached translation.
type FileOrchestrator struct {
	State     *state.State
	Segmenter *segment.Segmenter
	Extractor Extractor
	// Budget is the token budget passed to the segmenter.
	Budget int
	// TargetAlias names the written file, Languages are the suffixes that
	// mark an existing translation.
	TargetAlias    string
	Languages      []string
	IgnoreExisting bool

	// Exactly one of Queue (batch mode) and Sync is used; Sync wins when set.
	Queue Queue
	Sync  GroupTranslator

	mu      sync.Mutex
	sources map[string]*source
}

// Reset forgets what previous runs learned about each path.
func (o *FileOrchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources = nil
}

// TranslatePath processes mediaPath. Skips are reported through the result,
// not as errors. A file is only written when all groups are resolved.
func (o *FileOrchestrator) TranslatePath(ctx context.Context, mediaPath string) (FileResult, error) {
	name := media.DisplayName(filepath.Base(mediaPath))
	result := FileResult{Path: mediaPath}

	if !o.IgnoreExisting {
		if existing, ok := subtitle.HasSidecar(mediaPath, o.Languages); ok {
			log.Debug("Skipping, existing translation: %s (%s)", name, filepath.Base(existing))
			result.Status = StatusSkipped
			result.Reason = "existing translation"
			return result, nil
		}
	}

	src, err := o.source(ctx, mediaPath)
	if err != nil {
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result, err
	}
	if src.skip {
		result.Status = StatusSkipped
		result.Reason = src.reason
		result.Cause = src.cause
		return result, nil
	}

	requests := make([]string, len(src.groups))
	resolved := make([][]string, len(src.groups))
	var toSync []string
	seen := make(map[string]struct{})
	remaining := 0

	for i, group := range src.groups {
		req := segment.Request(group)
		requests[i] = req
		if lines, ok := o.State.Translations.Lookup(req); ok {
			resolved[i] = lines
			continue
		}
		remaining++
		if o.State.Jobs.IsQueued(req) {
			continue
		}
		if o.Sync != nil {
			if _, dup := seen[req]; !dup {
				seen[req] = struct{}{}
				toSync = append(toSync, req)
			}
		} else if o.Queue != nil {
			o.Queue.Add(req)
		}
	}

	var syncErr error
	if len(toSync) > 0 {
		log.Info("Translating %d groups of %s", len(toSync), name)
		var lines map[string][]string
		lines, syncErr = o.Sync.TranslateGroups(ctx, toSync)
		for i, req := range requests {
			if resolved[i] != nil {
				continue
			}
			if l, ok := lines[req]; ok {
				resolved[i] = l
				remaining--
			}
		}
	}

	if remaining > 0 {
		result.Remaining = remaining
		if syncErr != nil {
			result.Status = StatusFailed
			result.Reason = syncErr.Error()
			return result, Classify(syncErr, fmt.Sprintf("translate %s", name))
		}
		log.Debug("%s: %d/%d groups pending", name, remaining, len(src.groups))
		result.Status = StatusPending
		return result, nil
	}

	var lines []string
	for _, l := range resolved {
		lines = append(lines, l...)
	}
	target := subtitle.TargetPath(src.path, o.TargetAlias)
	if err := subtitle.WriteFile(target, src.entries, lines); err != nil {
		result.Status = StatusFailed
		result.Reason = err.Error()
		return result, WrapError(err, ErrFileWrite, "write translation").WithContext("path", target)
	}

	log.Info("Translated: %s", name)
	result.Status = StatusTranslated
	return result, nil
}

// source returns the parsed subtitle for mediaPath, extracting it from the
// container on first use. Outcomes other than errors are remembered.
func (o *FileOrchestrator) source(ctx context.Context, mediaPath string) (*source, error) {
	o.mu.Lock()
	if src, ok := o.sources[mediaPath]; ok {
		o.mu.Unlock()
		return src, nil
	}
	o.mu.Unlock()

	src, err := o.loadSource(ctx, mediaPath)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	if o.sources == nil {
		o.sources = make(map[string]*source)
	}
	o.sources[mediaPath] = src
	o.mu.Unlock()
	return src, nil
}

func (o *FileOrchestrator) loadSource(ctx context.Context, mediaPath string) (*source, error) {
	name := media.DisplayName(filepath.Base(mediaPath))

	path := subtitle.SourcePath(mediaPath)
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, WrapError(err, ErrFileRead, "stat source subtitle").WithContext("path", path)
		}
		if o.Extractor == nil {
			log.Warn("Skipping: %s, no subtitles found", name)
			return missingSource("no subtitles found", mediaPath), nil
		}

		extraction, err := o.Extractor.Extract(ctx, mediaPath)
		if err != nil {
			return nil, WrapError(err, ErrFileRead, "extract subtitles").WithContext("path", mediaPath)
		}
		if extraction.HasTarget {
			return &source{skip: true, reason: "already translated"}, nil
		}
		if !extraction.Usable() {
			log.Warn("Skipping: %s, %s", name, extraction.Reason)
			return missingSource(extraction.Reason, mediaPath), nil
		}
		path = extraction.SubtitlePath
	}

	f, err := subtitle.ReadFile(path)
	if err != nil {
		return nil, WrapError(err, ErrFileRead, "read source subtitle").WithContext("path", path)
	}
	if len(f.Entries) == 0 {
		log.Warn("Skipping: %s, no subtitle entries in %s", name, filepath.Base(path))
		return missingSource("no subtitle entries", path), nil
	}

	groups, err := o.Segmenter.Segment(f.Entries, o.Budget)
	if err != nil {
		return nil, WrapError(err, ErrConfig, "segment subtitle").WithContext("path", path)
	}
	return &source{path: path, entries: f.Entries, groups: groups}, nil
}

func missingSource(reason, path string) *source {
	return &source{
		skip:   true,
		reason: reason,
		cause:  NewError(ErrMissingSource, reason).WithContext("path", path),
	}
}
