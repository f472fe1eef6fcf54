package provider

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultOCRModel = "gpt-4o-mini"

	DefaultOCRInstruction = "Transcribe every piece of visible text in this trading chart screenshot exactly as it appears, " +
		"including the instrument symbol, timeframe and any indicator labels and values. " +
		"Output only the transcribed text, one item per line, with no commentary."
)

// VisionRecognizer performs text recognition on a preprocessed image through a
// vision-capable chat model.
type VisionRecognizer struct {
	tracer      trace.Tracer
	client      openai.Client
	model       string
	instruction string
}

func NewVisionRecognizer(tracer trace.Tracer, apiKey, baseURL, model, instruction string, opts ...option.RequestOption) *VisionRecognizer {
	if model == "" {
		model = defaultOCRModel
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = DefaultOCRInstruction
	}
	return &VisionRecognizer{
		tracer:      tracer,
		client:      openai.NewClient(clientOptions(apiKey, baseURL, opts)...),
		model:       model,
		instruction: instruction,
	}
}

func (r *VisionRecognizer) Recognize(ctx context.Context, image []byte) (string, error) {
	ctx, span := r.tracer.Start(ctx, "openai.recognize")
	defer span.End()
	span.SetAttributes(attribute.String("model", r.model), attribute.Int("image_bytes", len(image)))

	if len(image) == 0 {
		return "", fmt.Errorf("recognize: empty image")
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(image)

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(r.instruction),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
	})
	if err != nil {
		return "", classifyOpenAIError("recognize", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}
