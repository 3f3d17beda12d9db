package llm

import (
	"fmt"
)

const (
	defaultAPIURL = "https://api.openai.com/v1"
	defaultModel  = "gpt-4o-mini"
)

// Config holds the configuration for the provider client.
// Any OpenAI compatible endpoint works; the batch API additionally needs
// /files and /batches support.
type Config struct {
	APIKey      string  `json:"api_key"`
	APIURL      string  `json:"api_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"` // response cap; 0 leaves it to the model
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Timeout     int     `json:"timeout"`
	SiteURL     string  `json:"site_url"`
	AppName     string  `json:"app_name"`
}

// NewConfig returns the sampling defaults used for subtitle translation.
func NewConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		APIURL:      defaultAPIURL,
		Model:       defaultModel,
		Temperature: 0.2,
		TopP:        1,
		Timeout:     120,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.APIURL == "" {
		return fmt.Errorf("API URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	if c.TopP < 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be between 0 and 1")
	}
	if c.Timeout < 1 {
		return fmt.Errorf("timeout must be greater than 0")
	}
	return nil
}

// GetHeaders returns the headers for a JSON API request
func (c *Config) GetHeaders() map[string]string {
	headers := map[string]string{
		"Authorization": "Bearer " + c.APIKey,
		"Content-Type":  "application/json",
	}

	if c.SiteURL != "" {
		headers["HTTP-Referer"] = c.SiteURL
	}
	if c.AppName != "" {
		headers["X-Title"] = c.AppName
	}

	return headers
}
