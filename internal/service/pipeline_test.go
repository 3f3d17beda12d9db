package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subs-ai/internal/batch"
)

func newBatchPipeline(t *testing.T) (*Pipeline, *fakeBatch, *[]time.Duration) {
	t.Helper()
	st := newState(t)
	fb := &fakeBatch{st: st}
	o := newOrchestrator(st)
	o.Queue = fb

	var waits []time.Duration
	p := &Pipeline{
		Orchestrator: o,
		State:        st,
		Poller:       fb,
		Dispatcher:   fb,
		PollInterval: time.Minute,
		sleep: func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		},
	}
	return p, fb, &waits
}

func TestPipelineRun_Batch(t *testing.T) {
	dir := t.TempDir()
	first := writeMedia(t, dir, "a")
	second := writeMedia(t, dir, "b")
	p, fb, waits := newBatchPipeline(t)

	require.NoError(t, p.Run(context.Background(), []string{first, second}))

	// both files share one request, so one job covers them
	assert.Equal(t, 1, fb.flushes)
	assert.Equal(t, 2, fb.polls)
	assert.Equal(t, []time.Duration{time.Minute}, *waits)
	assert.Equal(t, wantOutput, readFile(t, filepath.Join(dir, "a.es.srt")))
	assert.Equal(t, wantOutput, readFile(t, filepath.Join(dir, "b.es.srt")))
	assert.Empty(t, p.State.Jobs.Pending())
}

func TestPipelineRun_NothingToDo(t *testing.T) {
	p, fb, waits := newBatchPipeline(t)

	require.NoError(t, p.Run(context.Background(), nil))
	assert.Equal(t, 1, fb.polls)
	assert.Zero(t, fb.flushes)
	assert.Empty(t, *waits)
}

func TestPipelineRun_QuotaStops(t *testing.T) {
	p, fb, _ := newBatchPipeline(t)
	fb.pollErr = batch.ErrQuotaExceeded

	err := p.Run(context.Background(), []string{writeMedia(t, t.TempDir(), "a")})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrQuota))
	assert.True(t, errors.Is(err, batch.ErrQuotaExceeded))
	assert.Zero(t, fb.flushes)
}

func TestPipelineRun_ResubmitsFailedBatch(t *testing.T) {
	dir := t.TempDir()
	p, fb, waits := newBatchPipeline(t)
	fb.failPolls = 1

	require.NoError(t, p.Run(context.Background(), []string{writeMedia(t, dir, "a")}))
	assert.Equal(t, 2, fb.flushes, "released requests are submitted again")
	assert.Equal(t, 3, fb.polls)
	assert.Len(t, *waits, 2)
	assert.Equal(t, wantOutput, readFile(t, filepath.Join(dir, "a.es.srt")))
}

func TestPipelineRun_GivesUpOnFailingBatches(t *testing.T) {
	dir := t.TempDir()
	p, fb, _ := newBatchPipeline(t)
	fb.failPolls = 100

	err := p.Run(context.Background(), []string{writeMedia(t, dir, "a")})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrBatchFailed))
	assert.Equal(t, 1+maxResubmits, fb.flushes)
	assert.NoFileExists(t, filepath.Join(dir, "a.es.srt"))
	assert.Empty(t, p.State.Jobs.Pending())
}

func TestPipelineRun_RetriesFailedSubmission(t *testing.T) {
	dir := t.TempDir()
	p, fb, waits := newBatchPipeline(t)
	fb.failFlushes = 1

	require.NoError(t, p.Run(context.Background(), []string{writeMedia(t, dir, "a")}))
	assert.Equal(t, 2, fb.flushes)
	assert.Len(t, *waits, 2)
	assert.Equal(t, wantOutput, readFile(t, filepath.Join(dir, "a.es.srt")))
}

func TestPipelineRun_ReportsUnsubmittedRequests(t *testing.T) {
	dir := t.TempDir()
	p, fb, _ := newBatchPipeline(t)
	fb.failFlushes = 100

	err := p.Run(context.Background(), []string{writeMedia(t, dir, "a")})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrBatchFailed))
	assert.ErrorIs(t, err, errSubmit)
	assert.Contains(t, err.Error(), "1 requests could not be submitted")
	assert.Equal(t, 1+maxResubmits, fb.flushes)
	assert.Equal(t, 1, fb.Len())
}

func TestPipelineRun_CancelledWhileWaiting(t *testing.T) {
	p, _, _ := newBatchPipeline(t)
	p.sleep = nil
	p.PollInterval = time.Hour
	// keep the job open so the loop has to wait
	p.Poller = pollFunc(func(context.Context) (batch.PollResult, error) { return batch.PollResult{}, nil })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := p.Run(ctx, []string{writeMedia(t, t.TempDir(), "a")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.State.Jobs.Pending(), 1)
}

func TestPipelineRun_Sync(t *testing.T) {
	dir := t.TempDir()
	st := newState(t)
	o := newOrchestrator(st)
	o.Sync = &fakeSync{store: func(req string, lines []string) {
		require.NoError(t, st.Translations.Store(req, lines))
	}}
	p := &Pipeline{Orchestrator: o, State: st}

	require.NoError(t, p.Run(context.Background(), []string{writeMedia(t, dir, "a")}))
	assert.Equal(t, wantOutput, readFile(t, filepath.Join(dir, "a.es.srt")))
	assert.Equal(t, 1, st.Translations.Len())
}

func TestPipelineSchedule(t *testing.T) {
	p, _, _ := newBatchPipeline(t)
	c := cron.New()

	_, err := p.Schedule(context.Background(), c, "not a schedule", []string{t.TempDir()})
	assert.True(t, IsErrorType(err, ErrConfig))

	id, err := p.Schedule(context.Background(), c, "@every 1h", []string{t.TempDir()})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Len(t, c.Entries(), 1)
}

func TestPipelineRunDirs(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "a")
	p, _, _ := newBatchPipeline(t)

	require.NoError(t, p.RunDirs(context.Background(), []string{dir}))
	assert.Equal(t, wantOutput, readFile(t, filepath.Join(dir, "a.es.srt")))
}

type pollFunc func(context.Context) (batch.PollResult, error)

func (f pollFunc) Poll(ctx context.Context) (batch.PollResult, error) { return f(ctx) }
