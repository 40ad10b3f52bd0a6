package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAnthropicAPIURL = "https://api.anthropic.com/v1/messages"

// AnthropicProvider implements Provider using the Anthropic Messages API via
// direct HTTP, with SSE streaming when the caller supplies OnToken.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model, baseURL string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = defaultAnthropicAPIURL
	}
	return &AnthropicProvider{apiKey: apiKey, model: model, baseURL: baseURL, client: &http.Client{}}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// anthropicStreamEvent covers the handful of SSE event fields this provider
// cares about: incremental text deltas and the final message usage.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`
	Message *struct {
		Model string         `json:"model"`
		Usage anthropicUsage `json:"usage"`
	} `json:"message,omitempty"`
	Usage *anthropicUsage `json:"usage,omitempty"`
}

func (p *AnthropicProvider) buildRequest(req CompletionRequest, stream bool) anthropicRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	systemPrompt := req.SystemPrompt
	var messages []anthropicMessage
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		case RoleUser:
			messages = append(messages, anthropicMessage{Role: "user", Content: msg.Content})
		case RoleAssistant:
			messages = append(messages, anthropicMessage{Role: "assistant", Content: msg.Content})
		}
	}
	if req.UserPrompt != "" {
		messages = append(messages, anthropicMessage{Role: "user", Content: req.UserPrompt})
	}
	if req.ResponseSchema != nil {
		systemPrompt = appendSchemaInstruction(systemPrompt, *req.ResponseSchema)
	}

	return anthropicRequest{
		Model: model, MaxTokens: maxTokens, Temperature: req.Temperature,
		System: systemPrompt, Messages: messages, Stream: stream,
	}
}

func (p *AnthropicProvider) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	return httpReq, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	if req.OnToken != nil {
		return p.completeStreaming(ctx, req, start)
	}

	apiReq := p.buildRequest(req, false)
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read anthropic response: %w", err)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal anthropic response: %w", err)
	}
	if apiResp.Error != nil {
		return nil, statusErrorFor(httpResp.StatusCode, fmt.Sprintf("anthropic API error (%s): %s", apiResp.Error.Type, apiResp.Error.Message))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, statusErrorFor(httpResp.StatusCode, string(respBody))
	}

	var content string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return &CompletionResponse{
		Content:      content,
		FinishReason: apiResp.StopReason,
		Usage: Usage{
			InputTokens:         apiResp.Usage.InputTokens,
			OutputTokens:        apiResp.Usage.OutputTokens,
			CacheReadTokens:     apiResp.Usage.CacheReadInputTokens,
			CacheCreationTokens: apiResp.Usage.CacheCreationInputTokens,
			Model:               apiResp.Model,
			DurationMs:          time.Since(start).Milliseconds(),
		},
	}, nil
}

// completeStreaming issues the request with stream:true and feeds
// incremental text deltas to req.OnToken as a running estimated token count
// (EstimateTokens summed over the deltas),
// using the final message_delta usage event as the authoritative total.
func (p *AnthropicProvider) completeStreaming(ctx context.Context, req CompletionRequest, start time.Time) (*CompletionResponse, error) {
	apiReq := p.buildRequest(req, true)
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal anthropic request: %w", err)
	}

	httpReq, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, statusErrorFor(httpResp.StatusCode, string(respBody))
	}

	var content strings.Builder
	var model string
	var usage anthropicUsage
	var finishReason string

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	tokenCount := 0

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}

		var event anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta != nil && event.Delta.Type == "text_delta" {
				content.WriteString(event.Delta.Text)
				tokenCount += EstimateTokens(event.Delta.Text)
				req.OnToken(tokenCount)
			}
		case "message_start":
			if event.Message != nil {
				model = event.Message.Model
				usage = event.Message.Usage
			}
		case "message_delta":
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
			}
		case "message_stop":
			finishReason = "end_turn"
		}
	}

	if model == "" {
		model = req.Model
		if model == "" {
			model = p.model
		}
	}

	// Final callback reports the provider's own authoritative total.
	req.OnToken(usage.OutputTokens)

	return &CompletionResponse{
		Content:      content.String(),
		FinishReason: finishReason,
		Usage: Usage{
			InputTokens:         usage.InputTokens,
			OutputTokens:        usage.OutputTokens,
			CacheReadTokens:     usage.CacheReadInputTokens,
			CacheCreationTokens: usage.CacheCreationInputTokens,
			Model:               model,
			DurationMs:          time.Since(start).Milliseconds(),
		},
	}, nil
}

// appendSchemaInstruction tells the model to emit a single JSON object
// matching the schema, for providers (like Anthropic's Messages API
// without forced tool-use) that don't have a native response_format.
func appendSchemaInstruction(systemPrompt string, schema Schema) string {
	raw, _ := json.Marshal(schema.Raw)
	instruction := fmt.Sprintf(
		"\n\nRespond with a single JSON object named %q conforming exactly to this JSON schema, and nothing else:\n%s",
		schema.Name, string(raw),
	)
	return systemPrompt + instruction
}

func statusErrorFor(code int, body string) error {
	return &StatusError{StatusCode: code, Body: body}
}
