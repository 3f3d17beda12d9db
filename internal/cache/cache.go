// Package cache holds translations keyed by their exact request text.
package cache

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MimeLyc/subs-ai/internal/segment"
)

var ErrLengthMismatch = errors.New("translation line count does not match request")

// Translations maps a numbered request to its translated lines. Entries are
// only replaced by a later successful translation of the same request.
type Translations struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewTranslations builds a cache from a loaded snapshot. Snapshot entries whose
// length disagrees with their request are dropped.
func NewTranslations(snapshot map[string][]string) *Translations {
	t := &Translations{entries: make(map[string][]string, len(snapshot))}
	for content, lines := range snapshot {
		if len(lines) == segment.LineCount(content) {
			t.entries[content] = slices.Clone(lines)
		}
	}
	return t
}

func (t *Translations) Lookup(content string) ([]string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lines, ok := t.entries[content]
	if !ok {
		return nil, false
	}
	return slices.Clone(lines), true
}

// Store records lines for content. It fails with ErrLengthMismatch when the
// number of lines differs from the number of request lines.
func (t *Translations) Store(content string, lines []string) error {
	if want := segment.LineCount(content); len(lines) != want {
		return fmt.Errorf("%w: want %d, got %d", ErrLengthMismatch, want, len(lines))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[content] = slices.Clone(lines)
	return nil
}

func (t *Translations) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Snapshot copies the whole cache for persistence.
func (t *Translations) Snapshot() map[string][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ret := maps.Clone(t.entries)
	if ret == nil {
		ret = map[string][]string{}
	}
	return ret
}
