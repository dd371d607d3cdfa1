package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"github.com/vladimiradmaev/glucose-monitor/internal/config"
	"github.com/vladimiradmaev/glucose-monitor/internal/domain"
	apperrors "github.com/vladimiradmaev/glucose-monitor/internal/errors"
	"github.com/vladimiradmaev/glucose-monitor/internal/logger"
)

// textProvider is one LLM backend
type textProvider interface {
	Name() string
	Generate(ctx context.Context, req domain.TextRequest) (string, error)
}

// AIService implements domain.TextGenerator over the configured providers,
// trying them in order until one answers.
type AIService struct {
	providers    []textProvider
	geminiClient *genai.Client
}

// NewAIService builds the providers named in cfg.Providers. Providers without
// credentials are skipped; an AIService with no providers always fails, which
// callers treat as "use the fallback".
func NewAIService(ctx context.Context, cfg config.LLMConfig) (*AIService, error) {
	s := &AIService{}

	for _, name := range cfg.Providers {
		switch name {
		case "gemini":
			if cfg.GeminiAPIKey == "" {
				logger.Warn("Gemini provider skipped: GEMINI_API_KEY is not set")
				continue
			}
			client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
			if err != nil {
				return nil, fmt.Errorf("failed to create Gemini client: %w", err)
			}
			s.geminiClient = client
			s.providers = append(s.providers, &geminiProvider{client: client, model: cfg.GeminiModel})
		case "openai":
			if cfg.OpenAIAPIKey == "" && cfg.OpenAIBaseURL == "" {
				logger.Warn("OpenAI provider skipped: neither OPENAI_API_KEY nor OPENAI_BASE_URL is set")
				continue
			}
			s.providers = append(s.providers, newOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model))
		}
	}

	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	logger.Info("AI service initialized", "providers", names)
	return s, nil
}

// Enabled reports whether at least one provider is configured
func (s *AIService) Enabled() bool {
	return len(s.providers) > 0
}

func (s *AIService) GenerateText(ctx context.Context, req domain.TextRequest) (string, error) {
	if len(s.providers) == 0 {
		return "", apperrors.NewExternalAPIError(errors.New("no providers configured"), "llm")
	}

	var errs []error
	for _, p := range s.providers {
		text, err := p.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		logger.Warn("LLM provider failed", "provider", p.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", apperrors.NewExternalAPIError(errors.Join(errs...), "llm")
}

// Close releases provider clients
func (s *AIService) Close() error {
	if s.geminiClient != nil {
		return s.geminiClient.Close()
	}
	return nil
}

type geminiProvider struct {
	client *genai.Client
	model  string
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Generate(ctx context.Context, req domain.TextRequest) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates in response")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

type openAIProvider struct {
	client *openai.Client
	model  string
}

// newOpenAIProvider targets api.openai.com, or any compatible endpoint such as
// Ollama's /v1 when baseURL is set.
func newOpenAIProvider(apiKey, baseURL, model string) *openAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &openAIProvider{client: openai.NewClientWithConfig(cfg), model: model}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) Generate(ctx context.Context, req domain.TextRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
