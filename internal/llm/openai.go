package llm

import (
	"context"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider using the OpenAI Chat Completions API.
// Setting baseURL lets this same implementation reach any OpenAI-compatible
// endpoint (OpenRouter, local gateways, ...) rather than maintaining a
// bespoke provider per endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// NewOpenAIProvider creates a new OpenAI provider. baseURL may be empty to
// use OpenAI's default endpoint.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) buildRequest(req CompletionRequest, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	if req.UserPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}

	if req.ResponseSchema != nil {
		apiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return apiReq
}

func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	if req.OnToken != nil {
		return p.completeStreaming(ctx, req, start)
	}

	apiReq := p.buildRequest(req, false)
	resp, err := p.client.CreateChatCompletion(ctx, apiReq)
	if err != nil {
		return nil, err
	}

	var content string
	var finishReason string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = string(resp.Choices[0].FinishReason)
	}

	return &CompletionResponse{
		Content:      content,
		FinishReason: finishReason,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			Model:        resp.Model,
			DurationMs:   time.Since(start).Milliseconds(),
		},
	}, nil
}

func (p *OpenAIProvider) completeStreaming(ctx context.Context, req CompletionRequest, start time.Time) (*CompletionResponse, error) {
	apiReq := p.buildRequest(req, true)
	stream, err := p.client.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content string
	var finishReason string
	model := apiReq.Model
	tokenCount := 0

	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if chunk.Model != "" {
			model = chunk.Model
		}
		if len(chunk.Choices) > 0 {
			delta := chunk.Choices[0].Delta.Content
			content += delta
			if delta != "" {
				tokenCount += EstimateTokens(delta)
				req.OnToken(tokenCount)
			}
			if chunk.Choices[0].FinishReason != "" {
				finishReason = string(chunk.Choices[0].FinishReason)
			}
		}
	}

	outputTokens := EstimateTokens(content)
	req.OnToken(outputTokens)

	return &CompletionResponse{
		Content:      content,
		FinishReason: finishReason,
		Usage: Usage{
			OutputTokens: outputTokens,
			Model:        model,
			DurationMs:   time.Since(start).Milliseconds(),
		},
	}, nil
}
