package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"chart-signal-bot/internal/domain"
)

const defaultSignalModel = "deepseek/deepseek-v3.2"

// OpenAIClient generates signal text through any OpenAI-compatible chat API.
type OpenAIClient struct {
	tracer trace.Tracer
	client openai.Client
	model  string
}

func NewOpenAIClient(tracer trace.Tracer, apiKey, baseURL, model string, opts ...option.RequestOption) *OpenAIClient {
	if model == "" {
		model = defaultSignalModel
	}
	return &OpenAIClient{
		tracer: tracer,
		client: openai.NewClient(clientOptions(apiKey, baseURL, opts)...),
		model:  model,
	}
}

func clientOptions(apiKey, baseURL string, extra []option.RequestOption) []option.RequestOption {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return append(opts, extra...)
}

func (c *OpenAIClient) Generate(ctx context.Context, system, user string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "openai.generate")
	defer span.End()
	span.SetAttributes(attribute.String("model", c.model))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", classifyOpenAIError("generate", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generate: empty response from %s", c.model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyOpenAIError marks rate limits, server errors and transport failures
// as transient; other API errors are terminal.
func classifyOpenAIError(op string, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500 {
			return domain.Transient(fmt.Errorf("%s: %w", op, err))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.Transient(fmt.Errorf("%s: %w", op, err))
}
