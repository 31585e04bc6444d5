package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
)

// describePrompt keeps descriptions aligned with the attribute taxonomy so
// the downstream extraction pass has material to work with.
const describePrompt = "Describe this garment for a secondhand fashion catalog: " +
	"garment type, fit, material, primary color, pattern, overall style, and any " +
	"notable condition details. Two sentences, no preamble."

const describeMaxTokens = 160

// DescriberConfig holds the vision provider settings.
type DescriberConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *zap.Logger
}

// Describer turns a garment image into catalog prose with a vision model.
// The text feeds both attribute extraction and the image-side embedding.
type Describer struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewDescriber creates an OpenAI-compatible vision describer.
func NewDescriber(cfg *DescriberConfig) *Describer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Describer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

// Describe returns a short textual description of the image at the given URL.
// Failures wrap domain.ErrVisionUnavailable so ingest can proceed without
// the image-side enrichment.
func (d *Describer) Describe(ctx context.Context, imageURL string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     d.model,
		MaxTokens: describeMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: describePrompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	}

	resp, err := d.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", parseAPIError("vision", err, domain.ErrVisionUnavailable)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty vision response: %w", domain.ErrVisionUnavailable)
	}

	desc := strings.TrimSpace(resp.Choices[0].Message.Content)
	if desc == "" {
		return "", fmt.Errorf("empty vision response: %w", domain.ErrVisionUnavailable)
	}
	return desc, nil
}
