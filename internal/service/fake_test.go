package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subs-ai/internal/batch"
	"github.com/MimeLyc/subs-ai/internal/jobs"
	"github.com/MimeLyc/subs-ai/internal/media"
	"github.com/MimeLyc/subs-ai/internal/persistence"
	"github.com/MimeLyc/subs-ai/internal/segment"
	"github.com/MimeLyc/subs-ai/internal/state"
	"github.com/MimeLyc/subs-ai/internal/tokenizer"
)

const sourceSRT = "1\n00:00:01,000 --> 00:00:02,000\nHello\n\n2\n00:00:03,000 --> 00:00:04,000\n<i>World</i>\n\n3\n00:00:05,000 --> 00:00:06,000\nBye\n"

const wantRequest = "1. Hello\n2. World\n3. Bye"

func newState(t *testing.T) *state.State {
	t.Helper()
	backend, err := persistence.Open(persistence.BackendJSON, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	st, err := state.Load(context.Background(), backend)
	require.NoError(t, err)
	return st
}

// writeMedia creates an empty media file plus its English sidecar.
func writeMedia(t *testing.T, dir, name string) string {
	t.Helper()
	mediaPath := filepath.Join(dir, name+".mkv")
	require.NoError(t, os.WriteFile(mediaPath, nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".en.srt"), []byte(sourceSRT), 0o644))
	return mediaPath
}

func newOrchestrator(st *state.State) *FileOrchestrator {
	factory := func() (tokenizer.Tokenizer, error) { return tokenizer.Approx{}, nil }
	return &FileOrchestrator{
		State:       st,
		Segmenter:   segment.New(factory, "system"),
		Budget:      1000,
		TargetAlias: "es",
		Languages:   []string{"es", "spa", "Spanish"},
	}
}

func spanish(request string) []string {
	lines := segment.SplitNumbered(request)
	for i, l := range lines {
		lines[i] = "ES " + l
	}
	return lines
}

type fakeSync struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	fail  map[string]bool
	store func(request string, lines []string)
}

func (f *fakeSync) TranslateGroups(_ context.Context, requests []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, requests)

	out := make(map[string][]string)
	for _, req := range requests {
		if f.fail[req] {
			continue
		}
		out[req] = spanish(req)
		if f.store != nil {
			f.store(req, out[req])
		}
	}
	return out, f.err
}

type fakeQueue struct {
	added []string
}

func (f *fakeQueue) Add(content string) bool {
	f.added = append(f.added, content)
	return true
}

type fakeExtractor struct {
	calls  int
	result media.Extraction
	err    error
}

func (f *fakeExtractor) Extract(context.Context, string) (media.Extraction, error) {
	f.calls++
	return f.result, f.err
}

// fakeBatch plays both batch roles against the real state: Flush opens one
// job holding every queued request and Poll completes every open job with
// spanish(). The first failPolls polls that find open jobs fail them instead,
// and the first failFlushes flushes return errSubmit.
type fakeBatch struct {
	st          *state.State
	queue       []string
	polls       int
	flushes     int
	pollErr     error
	failPolls   int
	failFlushes int
}

var errSubmit = errors.New("upload rejected")

func (f *fakeBatch) Len() int { return len(f.queue) }

func (f *fakeBatch) Add(content string) bool {
	if _, ok := f.st.Translations.Lookup(content); ok || f.st.Jobs.IsQueued(content) {
		return false
	}
	for _, queued := range f.queue {
		if queued == content {
			return false
		}
	}
	f.queue = append(f.queue, content)
	return true
}

func (f *fakeBatch) Flush(context.Context) (bool, error) {
	if len(f.queue) == 0 {
		return false, nil
	}
	f.flushes++
	if f.failFlushes > 0 {
		f.failFlushes--
		return false, errSubmit
	}
	requests := make([]jobs.Request, len(f.queue))
	for i, content := range f.queue {
		requests[i] = jobs.Request{Content: content, ID: fmt.Sprintf("req-%d", i)}
	}
	if _, err := f.st.Jobs.Enqueue(fmt.Sprintf("batch_%d", f.flushes), "file", jobs.StatusValidating, requests); err != nil {
		return false, err
	}
	f.queue = nil
	return true, nil
}

func (f *fakeBatch) Poll(context.Context) (batch.PollResult, error) {
	f.polls++
	var result batch.PollResult
	if f.pollErr != nil {
		return result, f.pollErr
	}
	if pending := f.st.Jobs.Pending(); len(pending) > 0 && f.failPolls > 0 {
		f.failPolls--
		for _, job := range pending {
			f.st.Jobs.Remove(job.ID)
			result.Failed++
		}
		return result, nil
	}
	for _, job := range f.st.Jobs.Pending() {
		for _, req := range job.Requests {
			if err := f.st.Translations.Store(req.Content, spanish(req.Content)); err != nil {
				return result, err
			}
			result.Resolved++
		}
		f.st.Jobs.Remove(job.ID)
		result.Completed++
	}
	result.JobCompleted = result.Completed > 0
	return result, nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}
