package quarantine

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounter(t *testing.T) {
	c := NewCounter(map[string]int{"1. a": 2})

	assert.Equal(t, 3, c.Increment("1. a"))
	assert.Equal(t, 1, c.Increment("1. b"))
	assert.Equal(t, 3, c.Count("1. a"))

	c.Clear("1. a")
	assert.Zero(t, c.Count("1. a"))
	assert.Equal(t, map[string]int{"1. b": 1}, c.Snapshot())
}

func TestPolicy_LogsOnlyPastThreshold(t *testing.T) {
	dir := t.TempDir()
	p := &Policy{
		Counter:   NewCounter(nil),
		Log:       NewLog(dir),
		Threshold: 2,
		System:    "system prompt",
	}

	p.Mismatch("1. a\n2. b", "1. x")
	p.Mismatch("1. a\n2. b", "1. x")
	assert.NoFileExists(t, p.Log.Path())

	assert.Equal(t, 3, p.Mismatch("1. a\n2. b", "1. y"))
	p.Mismatch("1. a\n2. b", "1. z")

	f, err := os.Open(p.Log.Path())
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 2)
	assert.Equal(t, []Message{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "1. a\n2. b"},
		{Role: "assistant", Content: "1. y"},
	}, records[0].Messages)

	p.Resolved("1. a\n2. b")
	assert.Zero(t, p.Counter.Count("1. a\n2. b"))
}
