package quarantine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileName is the side log kept in the state directory.
const FileName = "most-errored.jsonl"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Record is one request/response pair in chat fine-tuning layout.
type Record struct {
	Messages []Message `json:"messages"`
}

// Log appends quarantined pairs to a JSONL file.
type Log struct {
	mu   sync.Mutex
	path string
}

func NewLog(dir string) *Log {
	return &Log{path: filepath.Join(dir, FileName)}
}

func (l *Log) Path() string {
	return l.path
}

// Append writes the system prompt, request and bad model output as one line.
func (l *Log) Append(system, request, response string) error {
	data, err := json.Marshal(Record{Messages: []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: request},
		{Role: "assistant", Content: response},
	}})
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open quarantine log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write quarantine log: %w", err)
	}
	return nil
}
