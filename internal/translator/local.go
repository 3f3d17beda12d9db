package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MimeLyc/subs-ai/internal/llm"
	"github.com/MimeLyc/subs-ai/internal/segment"
)

// responseMarker separates the echoed prompt from the generated text in the
// local model's output.
const responseMarker = "# Response:"

// LocalServer talks to a self-hosted translation model exposing
// POST /translate {"text": [...]} -> {"translated_text": "..."}.
// The model carries its own instructions, so the system prompt is not sent.
type LocalServer struct {
	URL        string
	HTTPClient *http.Client
}

func NewLocalServer(url string) *LocalServer {
	return &LocalServer{
		URL:        strings.TrimRight(url, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Minute},
	}
}

type localRequest struct {
	Text []string `json:"text"`
}

type localResponse struct {
	TranslatedText string `json:"translated_text"`
	Error          string `json:"error"`
}

func (l *LocalServer) Complete(ctx context.Context, _ string, userText string) (string, string, error) {
	payload, err := json.Marshal(localRequest{Text: segment.SplitNumbered(userText)})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.URL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("local translation request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded localResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", "", fmt.Errorf("failed to parse local response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || decoded.Error != "" {
		return "", "", &llm.Error{Message: decoded.Error, StatusCode: resp.StatusCode}
	}

	return renumber(stripPrompt(decoded.TranslatedText)), llm.FinishStop, nil
}

func stripPrompt(text string) string {
	if i := strings.LastIndex(text, responseMarker); i >= 0 {
		text = text[i+len(responseMarker):]
	}
	return strings.TrimSpace(text)
}

// renumber prefixes plain output lines so it reads like chat model output.
func renumber(text string) string {
	if text == "" {
		return text
	}
	lines := segment.SplitNumbered(text)
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(line)
	}
	return b.String()
}
