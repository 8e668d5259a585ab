package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	appErrors "github.com/1282saa/paperone/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	DefaultModelID     = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultModelName   = "claude-3-haiku"
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.1
	DefaultTopP        = 0.9

	anthropicVersion = "bedrock-2023-05-31"
)

// BedrockSettings controls the model request.
type BedrockSettings struct {
	ModelID     string
	ModelName   string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultBedrockSettings returns the Claude 3 Haiku settings.
func DefaultBedrockSettings() BedrockSettings {
	return BedrockSettings{
		ModelID:     DefaultModelID,
		ModelName:   DefaultModelName,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}

// BedrockAPI is the part of the runtime client the backend calls.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
	InvokeModelWithResponseStream(ctx context.Context, params *bedrockruntime.InvokeModelWithResponseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelWithResponseStreamOutput, error)
}

// eventStream is satisfied by *bedrockruntime.InvokeModelWithResponseStreamEventStream.
type eventStream interface {
	Events() <-chan types.ResponseStream
	Close() error
	Err() error
}

// BedrockBackend calls Anthropic models on Amazon Bedrock.
type BedrockBackend struct {
	client   BedrockAPI
	settings BedrockSettings
	logger   *zap.Logger

	openStream func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error)
}

// NewBedrockBackend creates a backend. Zero settings fall back to defaults.
func NewBedrockBackend(client BedrockAPI, settings BedrockSettings, logger *zap.Logger) *BedrockBackend {
	def := DefaultBedrockSettings()
	if settings.ModelID == "" {
		settings.ModelID = def.ModelID
	}
	if settings.ModelName == "" {
		settings.ModelName = def.ModelName
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = def.MaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &BedrockBackend{client: client, settings: settings, logger: logger}
	b.openStream = func(ctx context.Context, in *bedrockruntime.InvokeModelWithResponseStreamInput) (eventStream, error) {
		out, err := b.client.InvokeModelWithResponseStream(ctx, in)
		if err != nil {
			return nil, err
		}
		return out.GetStream(), nil
	}
	return b
}

// ModelName is the short name reported to clients.
func (b *BedrockBackend) ModelName() string {
	return b.settings.ModelName
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	System           string    `json:"system,omitempty"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	TopP             float64   `json:"top_p"`
}

type invokeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func (b *BedrockBackend) body(prompt string) ([]byte, error) {
	return json.Marshal(invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.settings.MaxTokens,
		Messages:         []message{{Role: "user", Content: prompt}},
		Temperature:      b.settings.Temperature,
		TopP:             b.settings.TopP,
	})
}

// Generate sends one request and returns the first content block.
func (b *BedrockBackend) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := b.body(prompt)
	if err != nil {
		return "", appErrors.NewInternal("failed to encode model request", err)
	}
	resp, err := b.invoke(ctx, body)
	if err != nil {
		return "", err
	}

	b.logger.Debug("Model response received",
		zap.String("model_id", b.settings.ModelID),
		zap.Int("prompt_length", len(prompt)),
		zap.Int("response_length", len(resp.Content[0].Text)),
	)
	return resp.Content[0].Text, nil
}

// Chat sends a multi-turn conversation. Zero MaxTokens or Temperature in req
// fall back to the backend settings.
func (b *BedrockBackend) Chat(ctx context.Context, req ChatRequest) (ChatReply, error) {
	ir := invokeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        b.settings.MaxTokens,
		System:           req.System,
		Messages:         make([]message, 0, len(req.Messages)),
		Temperature:      b.settings.Temperature,
		TopP:             b.settings.TopP,
	}
	if req.MaxTokens > 0 {
		ir.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		ir.Temperature = req.Temperature
	}
	for _, m := range req.Messages {
		ir.Messages = append(ir.Messages, message{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(ir)
	if err != nil {
		return ChatReply{}, appErrors.NewInternal("failed to encode model request", err)
	}
	resp, err := b.invoke(ctx, body)
	if err != nil {
		return ChatReply{}, err
	}
	return ChatReply{
		Text:         resp.Content[0].Text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// invoke returns a response with at least one content block.
func (b *BedrockBackend) invoke(ctx context.Context, body []byte) (*invokeResponse, error) {
	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.settings.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classify(err)
	}

	var resp invokeResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return nil, appErrors.NewGeneration("model returned a malformed response", err)
	}
	if len(resp.Content) == 0 {
		return nil, appErrors.NewGeneration("model returned no content", nil)
	}
	return &resp, nil
}

// GenerateStream opens a response stream and forwards content_block_delta
// text as it arrives.
func (b *BedrockBackend) GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	body, err := b.body(prompt)
	if err != nil {
		return nil, appErrors.NewInternal("failed to encode model request", err)
	}

	stream, err := b.openStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(b.settings.ModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return nil, classify(err)
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		send := func(c Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		events := stream.Events()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					if err := stream.Err(); err != nil {
						send(Chunk{Err: classify(err)})
					}
					return
				}
				text, err := deltaText(event)
				if err != nil {
					send(Chunk{Err: err})
					return
				}
				if text == "" {
					continue
				}
				if !send(Chunk{Text: text}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// deltaText extracts the text of a content_block_delta chunk. Other event
// types carry no text.
func deltaText(event types.ResponseStream) (string, error) {
	chunk, ok := event.(*types.ResponseStreamMemberChunk)
	if !ok {
		return "", nil
	}
	var ev streamEvent
	if err := json.Unmarshal(chunk.Value.Bytes, &ev); err != nil {
		return "", appErrors.NewGeneration("model stream returned a malformed chunk", err)
	}
	if ev.Type != "content_block_delta" {
		return "", nil
	}
	return ev.Delta.Text, nil
}

// classify turns an SDK failure into a GenerationError tagged with the
// service error code when there is one.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return appErrors.NewGeneration("generation cancelled", err).WithCode("CANCELLED")
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return appErrors.NewGeneration(fmt.Sprintf("model invocation failed: %s", apiErr.ErrorMessage()), err).
			WithCode(apiErr.ErrorCode())
	}
	return appErrors.NewGeneration("model invocation failed", err)
}
