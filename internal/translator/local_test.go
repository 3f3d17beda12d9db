package translator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MimeLyc/subs-ai/internal/llm"
)

func TestLocalServer_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate", r.URL.Path)
		var req localRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"Hello", "World"}, req.Text)

		_ = json.NewEncoder(w).Encode(localResponse{
			TranslatedText: "You are a translator...\n# Input\nHello\nWorld\n\n# Response:\nHola\nMundo\n",
		})
	}))
	defer server.Close()

	text, finish, err := NewLocalServer(server.URL+"/").Complete(context.Background(), "ignored", "1. Hello\n2. World")
	require.NoError(t, err)
	assert.Equal(t, "1. Hola\n2. Mundo", text)
	assert.Equal(t, llm.FinishStop, finish)
}

func TestLocalServer_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"No text provided"}`)
	}))
	defer server.Close()

	_, _, err := NewLocalServer(server.URL).Complete(context.Background(), "", "1. ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No text provided")
}

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt("Spanish", "  Use neutral Latin American Spanish.  ")
	assert.Contains(t, prompt, "translated to Spanish")
	assert.Contains(t, prompt, "ALWAYS return the SAME number of points")
	assert.Contains(t, prompt, "Content starts here:\n\nUse neutral Latin American Spanish.\n")

	assert.NotContains(t, SystemPrompt("French", ""), "\n\n\n")
}
