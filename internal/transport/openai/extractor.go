package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/wabenzi/prethrift/internal/domain"
	"github.com/wabenzi/prethrift/internal/domain/attribute"
)

// ExtractorConfig holds the assisted-extraction provider settings.
// Families carries the allowed values per attribute family so the model is
// constrained to the same vocabulary as the rule pass.
type ExtractorConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Families map[string][]string
	Logger   *zap.Logger
}

// Extractor asks a chat model to assign taxonomy attributes to garment text.
// The closed family set is enforced on the way out: assignments the model
// invents outside it are dropped, never surfaced.
type Extractor struct {
	client *openai.Client
	model  string
	prompt string
	logger *zap.Logger
}

// NewExtractor creates an OpenAI-compatible assisted extractor.
func NewExtractor(cfg *ExtractorConfig) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Extractor{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		prompt: buildExtractionPrompt(cfg.Families),
		logger: cfg.Logger,
	}
}

func buildExtractionPrompt(families map[string][]string) string {
	var b strings.Builder
	b.WriteString("You label secondhand fashion listings. ")
	b.WriteString("Assign at most one value per attribute family, using only the allowed values below. ")
	b.WriteString("Skip a family rather than guess. Confidence is your certainty in [0,1]. ")
	b.WriteString(`Respond with JSON: {"attributes":[{"family":"...","value":"...","confidence":0.0}]}`)
	b.WriteString("\n\nAllowed values:\n")

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(families[name], ", "))
		b.WriteString("\n")
	}
	return b.String()
}

// extractionResponse mirrors the JSON shape the prompt requests.
type extractionResponse struct {
	Attributes []struct {
		Family     string  `json:"family"`
		Value      string  `json:"value"`
		Confidence float64 `json:"confidence"`
	} `json:"attributes"`
}

// Extract runs the assisted pass over listing or query text. Failures wrap
// domain.ErrExtractionUnavailable so callers can degrade to the rule pass.
func (e *Extractor) Extract(ctx context.Context, text string) ([]attribute.Assignment, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: e.prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, parseAPIError("extraction", err, domain.ErrExtractionUnavailable)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty extraction response: %w", domain.ErrExtractionUnavailable)
	}

	var parsed extractionResponse
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed); err != nil {
		return nil, fmt.Errorf("malformed extraction response: %w: %w", domain.ErrExtractionUnavailable, err)
	}

	out := make([]attribute.Assignment, 0, len(parsed.Attributes))
	seen := make(map[attribute.Family]bool, len(parsed.Attributes))
	dropped := 0
	for _, raw := range parsed.Attributes {
		family := attribute.Family(raw.Family)
		if !family.IsValid() || seen[family] {
			dropped++
			continue
		}
		a, err := attribute.New(family, raw.Value, clampConfidence(raw.Confidence), attribute.SourceAssisted)
		if err != nil {
			dropped++
			continue
		}
		seen[family] = true
		out = append(out, a)
	}

	if dropped > 0 {
		e.logger.Debug("dropped assisted assignments outside the taxonomy",
			zap.Int("dropped", dropped),
			zap.Int("kept", len(out)))
	}

	return out, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
