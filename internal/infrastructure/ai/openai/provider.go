// Package openai provides a model provider backed by the OpenAI API or any
// OpenAI-compatible endpoint such as Ollama's /v1.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alchemorsel/recipe-studio/internal/ports/outbound"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Config holds provider settings
type Config struct {
	// Name is reported in logs and spans, e.g. "openai" or "ollama".
	Name        string
	APIKey      string
	BaseURL     string
	TextModel   string
	VisionModel string
	ImageModel  string
	ImageSize   string
}

// Provider implements outbound.ModelProvider
type Provider struct {
	client *goopenai.Client
	config Config
	logger *zap.Logger
}

var (
	errNoChoices = errors.New("provider returned no choices")
	errNoImage   = errors.New("provider returned no image data")
)

// NewProvider creates a provider client
func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.TextModel == "" {
		cfg.TextModel = goopenai.GPT4oMini
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.TextModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = goopenai.CreateImageModelDallE3
	}
	if cfg.ImageSize == "" {
		cfg.ImageSize = goopenai.CreateImageSize1024x1024
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	logger = logger.Named("ai").With(zap.String("provider", cfg.Name))
	logger.Info("Model provider initialized",
		zap.String("base_url", clientConfig.BaseURL),
		zap.String("text_model", cfg.TextModel),
		zap.String("image_model", cfg.ImageModel),
	)

	return &Provider{
		client: goopenai.NewClientWithConfig(clientConfig),
		config: cfg,
		logger: logger,
	}
}

var _ outbound.ModelProvider = (*Provider)(nil)

// Name returns the provider name
func (p *Provider) Name() string {
	return p.config.Name
}

// Complete runs one chat completion. Images switch the request to the
// vision model with multi-part content.
func (p *Provider) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	model := p.config.TextModel
	user := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt}
	if len(req.Images) > 0 {
		model = p.config.VisionModel
		parts := []goopenai.ChatMessagePart{{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt}}
		for _, uri := range req.Images {
			parts = append(parts, goopenai.ChatMessagePart{
				Type:     goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{URL: uri, Detail: goopenai.ImageURLDetailAuto},
			})
		}
		user = goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, MultiContent: parts}
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, user)

	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", p.wrap("chat completion", err)
	}
	if len(resp.Choices) == 0 {
		p.logger.Warn("Provider returned no choices", zap.String("model", model))
		return "", errNoChoices
	}

	p.logger.Debug("Completion received",
		zap.String("model", model),
		zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage creates one image and returns it as a PNG data URI.
func (p *Provider) GenerateImage(ctx context.Context, prompt string) (*outbound.ImageResult, error) {
	resp, err := p.client.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          p.config.ImageModel,
		N:              1,
		Size:           p.config.ImageSize,
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, p.wrap("image generation", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errNoImage
	}
	return &outbound.ImageResult{DataURI: "data:image/png;base64," + resp.Data[0].B64JSON}, nil
}

// Ping lists the available models to check that the endpoint answers.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return p.wrap("list models", err)
	}
	return nil
}

func (p *Provider) wrap(op string, err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		p.logger.Error("Provider API error",
			zap.String("operation", op),
			zap.Int("status", apiErr.HTTPStatusCode),
			zap.String("type", apiErr.Type),
		)
		return fmt.Errorf("%s: %s (status %d): %w", op, apiErr.Message, apiErr.HTTPStatusCode, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
