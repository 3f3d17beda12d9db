package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subs-ai/internal/jobs"
	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/persistence"
	"github.com/MimeLyc/subs-ai/internal/quarantine"
	"github.com/MimeLyc/subs-ai/internal/state"
)

// fakeProvider records uploads and serves canned batches and files.
type fakeProvider struct {
	uploads   [][]llm.BatchRequest
	failAfter int // fail uploads once this many succeeded; 0 disables
	batches   map[string]*llm.Batch
	files     map[string]string
	retrieved []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		batches: map[string]*llm.Batch{},
		files:   map[string]string{},
	}
}

func (f *fakeProvider) UploadBatchFile(_ context.Context, _ string, requests []llm.BatchRequest) (string, error) {
	if f.failAfter > 0 && len(f.uploads) >= f.failAfter {
		return "", fmt.Errorf("upload refused")
	}
	f.uploads = append(f.uploads, requests)
	return fmt.Sprintf("file-%d", len(f.uploads)), nil
}

func (f *fakeProvider) CreateBatch(_ context.Context, inputFileID string) (*llm.Batch, error) {
	id := strings.Replace(inputFileID, "file-", "batch_", 1)
	return &llm.Batch{ID: id, Status: "validating", InputFileID: inputFileID}, nil
}

func (f *fakeProvider) RetrieveBatch(_ context.Context, batchID string) (*llm.Batch, error) {
	f.retrieved = append(f.retrieved, batchID)
	b, ok := f.batches[batchID]
	if !ok {
		return nil, &llm.Error{Message: "not found", StatusCode: 404}
	}
	return b, nil
}

func (f *fakeProvider) FileContent(_ context.Context, fileID string) ([]byte, error) {
	content, ok := f.files[fileID]
	if !ok {
		return nil, fmt.Errorf("no file %s", fileID)
	}
	return []byte(content), nil
}

type fixture struct {
	backend  persistence.Backend
	state    *state.State
	provider *fakeProvider
	policy   *quarantine.Policy
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	backend, err := persistence.NewJSONFiles(dir)
	require.NoError(t, err)
	st, err := state.Load(context.Background(), backend)
	require.NoError(t, err)

	return &fixture{
		backend:  backend,
		state:    st,
		provider: newFakeProvider(),
		policy: &quarantine.Policy{
			Counter:   st.Errors,
			Log:       quarantine.NewLog(dir),
			Threshold: quarantine.DefaultThreshold,
			System:    "system",
		},
		dir: dir,
	}
}

func (f *fixture) reload(t *testing.T) *state.State {
	t.Helper()
	st, err := state.Load(context.Background(), f.backend)
	require.NoError(t, err)
	return st
}

func buildRequest(system, user string) llm.ChatRequest {
	return llm.ChatRequest{
		Model: "test-model",
		Messages: []llm.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
}

// enqueue records an open job directly in state.
func (f *fixture) enqueue(t *testing.T, batchID string, contents ...string) {
	t.Helper()
	reqs := make([]jobs.Request, len(contents))
	for i, c := range contents {
		reqs[i] = jobs.Request{Content: c, ID: fmt.Sprintf("%s-req-%d", batchID, i)}
	}
	_, err := f.state.Jobs.Enqueue(batchID, "input-"+batchID, jobs.StatusValidating, reqs)
	require.NoError(t, err)
}

func resultLine(t *testing.T, customID, content string) string {
	t.Helper()
	line := llm.BatchResult{
		ID:       "resp-" + customID,
		CustomID: customID,
		Response: &llm.BatchResponse{
			StatusCode: 200,
			Body: llm.ChatResponse{Choices: []llm.Choice{{
				Message:      llm.Message{Role: "assistant", Content: content},
				FinishReason: "stop",
			}}},
		},
	}
	data, err := json.Marshal(line)
	require.NoError(t, err)
	return string(data)
}

func errorLine(t *testing.T, customID, message string) string {
	t.Helper()
	line := llm.BatchResult{
		CustomID: customID,
		Response: &llm.BatchResponse{
			StatusCode: 429,
			Body:       llm.ChatResponse{Error: &llm.Error{Message: message}},
		},
	}
	data, err := json.Marshal(line)
	require.NoError(t, err)
	return string(data)
}
