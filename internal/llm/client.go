package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/isndotbiz/llm-optimization-framework-sub001/internal/orchestrator"
)

// Client is an OpenAI-compatible chat completion client used as the
// production ModelExecutor for local model backends.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new LLM client with the given configuration
//
// Returns a new Client instance or an error if configuration is invalid
// Example:
//
//	client, err := llm.NewClient(&llm.Config{
//		APIURL:      "http://localhost:11434/v1",
//		Model:       "llama3.1:8b",
//		MaxTokens:   2048,
//		Temperature: 0.7,
//		Timeout:     120,
//	})
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: config.APIURL,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}

	return client, nil
}

var _ orchestrator.ModelExecutor = (*Client)(nil)

// Execute sends one prompt as a single-turn conversation and returns the
// generated text together with token usage and wall-clock duration. An
// empty modelID falls back to the configured default model.
func (c *Client) Execute(ctx context.Context, modelID string, prompt string) (*orchestrator.ModelOutput, error) {
	if modelID == "" {
		modelID = c.config.Model
	}

	request := ChatRequest{
		Model:       modelID,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	started := time.Now()
	response, err := c.makeRequest(ctx, "POST", "/chat/completions", request)
	if err != nil {
		return nil, orchestrator.WrapError(err, orchestrator.ErrExecutorFailure, "chat completion failed").
			WithContext("model", modelID)
	}
	if len(response.Choices) == 0 {
		return nil, orchestrator.NewError(orchestrator.ErrExecutorFailure, "no choices in response").
			WithContext("model", modelID)
	}

	return &orchestrator.ModelOutput{
		Text:      response.Choices[0].Message.Content,
		TokensIn:  response.Usage.PromptTokens,
		TokensOut: response.Usage.CompletionTokens,
		Duration:  time.Since(started),
	}, nil
}

// ChatCompletion creates a chat completion request to the configured backend
//
// Example:
//
//	messages := []llm.Message{
//		{Role: "user", Content: "Hello, how are you?"},
//	}
//	response, err := client.ChatCompletion(ctx, "llama3.1:8b", messages)
func (c *Client) ChatCompletion(ctx context.Context, model string, messages []Message) (*ChatResponse, error) {
	if model == "" {
		model = c.config.Model
	}

	request := ChatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	response, err := c.makeRequest(ctx, "POST", "/chat/completions", request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return response, nil
}

// makeRequest makes a raw HTTP request to the configured backend
func (c *Client) makeRequest(ctx context.Context, method, path string, payload interface{}) (*ChatResponse, error) {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("request timed out: %w", err)
		}
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		return &chatResponse, chatResponse.Error
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &chatResponse, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(responseBody))
	}

	return &chatResponse, nil
}
