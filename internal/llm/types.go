package llm

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Message represents a chat message
//
// Role: "system", "user", or "assistant"
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request in OpenAI format.
// Sampling fields are always sent so batch bodies are explicit.
type ChatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
	N                int       `json:"n"`
	PresencePenalty  float64   `json:"presence_penalty"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
	Error   *Error   `json:"error,omitempty"`
}

// Content returns the first choice's text and finish reason.
func (r *ChatResponse) Content() (string, string) {
	if r == nil || len(r.Choices) == 0 {
		return "", ""
	}
	return r.Choices[0].Message.Content, r.Choices[0].FinishReason
}

// Choice represents a completion choice
//
// FinishReason values: "stop", "length", "content_filter", "tool_calls", "function_call"
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// FinishStop is the only finish reason that yields a complete answer.
const FinishStop = "stop"

// Usage represents token usage statistics
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Error represents an API error. StatusCode and RetryAfter come from the
// HTTP response when the error was returned with a non-2xx status.
type Error struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`

	StatusCode int           `json:"-"`
	RetryAfter time.Duration `json:"-"`
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("LLM API Error: %s (status: %d, type: %s, code: %s)", e.Message, e.StatusCode, e.Type, e.Code)
	}
	return fmt.Sprintf("LLM API Error: %s (type: %s, code: %s)", e.Message, e.Type, e.Code)
}

const quotaMessage = "You exceeded your current quota"

// IsQuotaMessage reports whether an API error message signals exhausted quota.
func IsQuotaMessage(msg string) bool {
	return strings.Contains(msg, quotaMessage)
}

// IsQuotaExceeded reports whether err is an exhausted-quota API error.
func IsQuotaExceeded(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == "insufficient_quota" || IsQuotaMessage(apiErr.Message)
}

// BatchRequest is one line of a batch input file.
type BatchRequest struct {
	CustomID string      `json:"custom_id"`
	Method   string      `json:"method"`
	URL      string      `json:"url"`
	Body     ChatRequest `json:"body"`
}

const (
	BatchEndpoint         = "/v1/chat/completions"
	BatchCompletionWindow = "24h"
	BatchPurpose          = "batch"
)

// Batch is the provider's batch object.
type Batch struct {
	ID               string        `json:"id"`
	Object           string        `json:"object"`
	Endpoint         string        `json:"endpoint"`
	InputFileID      string        `json:"input_file_id"`
	CompletionWindow string        `json:"completion_window"`
	Status           string        `json:"status"`
	OutputFileID     string        `json:"output_file_id,omitempty"`
	ErrorFileID      string        `json:"error_file_id,omitempty"`
	CreatedAt        int64         `json:"created_at"`
	RequestCounts    RequestCounts `json:"request_counts"`
}

type RequestCounts struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// FileObject is the provider's response to a file upload.
type FileObject struct {
	ID       string `json:"id"`
	Object   string `json:"object"`
	Bytes    int    `json:"bytes"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

// BatchResult is one line of a batch output or error file.
type BatchResult struct {
	ID       string         `json:"id"`
	CustomID string         `json:"custom_id"`
	Response *BatchResponse `json:"response"`
	Error    *Error         `json:"error,omitempty"`
}

type BatchResponse struct {
	StatusCode int          `json:"status_code"`
	RequestID  string       `json:"request_id"`
	Body       ChatResponse `json:"body"`
}

// ErrorMessage returns the most specific error text carried by the line.
func (r *BatchResult) ErrorMessage() string {
	if r.Response != nil && r.Response.Body.Error != nil && r.Response.Body.Error.Message != "" {
		return r.Response.Body.Error.Message
	}
	if r.Error != nil {
		return r.Error.Message
	}
	return ""
}

// Content returns the assistant text of a successful line.
func (r *BatchResult) Content() string {
	if r.Response == nil {
		return ""
	}
	content, _ := r.Response.Body.Content()
	return content
}
