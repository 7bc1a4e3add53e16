package ai

import (
	"context"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"

	"github.com/kamra34/agentic-fin-tracker/pkg/errors"
	"github.com/kamra34/agentic-fin-tracker/pkg/logger"
)

// Compile-time check that we implement the interface
var _ ChatCompleter = (*OpenAIClient)(nil)

// OpenAIClient implements ChatCompleter using the official OpenAI Go SDK
type OpenAIClient struct {
	client  openai.Client
	model   openai.ChatModel
	timeout time.Duration
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewOpenAIClient creates a new OpenAI chat client
func NewOpenAIClient(apiKey, model string, timeout time.Duration, ratePerMinute int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "openai API key is required")
	}
	if model == "" {
		model = openai.ChatModelGPT4o
	}
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	if ratePerMinute <= 0 {
		ratePerMinute = 300
	}

	burst := ratePerMinute / 10
	if burst < 1 {
		burst = 1
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &OpenAIClient{
		client:  client,
		model:   openai.ChatModel(model),
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), burst),
		log:     logger.Get().With("component", "openai_chat", "model", model),
	}, nil
}

// Complete sends a chat completion request with tool calling support
func (c *OpenAIClient) Complete(ctx context.Context, msgs []Message, tools []ToolDefinition) (*Completion, error) {
	if len(msgs) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "messages cannot be empty")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limiter wait")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs)),
	}

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(msg.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(msg.Content))
		}
	}

	for _, tool := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionFunctionTool(
			openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(tool.Parameters),
			},
		))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.ErrTimeout, "openai chat completion")
		}
		return nil, errors.Wrap(err, "openai chat completion")
	}

	if len(resp.Choices) == 0 {
		return nil, errors.Wrap(errors.ErrExternal, "openai returned no choices")
	}

	choice := resp.Choices[0]
	completion := &Completion{
		Content: choice.Message.Content,
		Tokens:  int(resp.Usage.TotalTokens),
	}

	for _, tc := range choice.Message.ToolCalls {
		completion.ToolCalls = append(completion.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	c.log.Debugw("Chat completion finished",
		"duration", time.Since(start),
		"tokens", completion.Tokens,
		"tool_calls", len(completion.ToolCalls),
	)

	return completion, nil
}
