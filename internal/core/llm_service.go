package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/wisepal/wisepal-backend/internal/metrics"
)

const (
	defaultChatModelName  = "gemini-1.5-flash-latest"
	generateContentMethod = "generateContent"
)

// Completer turns a prompt into the provider's reply text.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// LLMService is the Gemini-backed Completer. When configuration fails at startup
// the service stays usable but every call fails with ErrServiceUnavailable.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    zerolog.Logger
}

func NewLLMService(ctx context.Context, apiKey, modelName string, logger zerolog.Logger) *LLMService {
	if modelName == "" {
		modelName = defaultChatModelName
	}
	s := &LLMService{modelName: modelName, logger: logger}

	if apiKey == "" {
		logger.Error().Msg("GOOGLE_API_KEY not set; AI model is not available")
		return s
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		logger.Error().Err(err).Msg("failed to create GenAI client; AI model is not available")
		return s
	}
	s.client = client
	logger.Info().Str("model", modelName).Msg("AI model configured")
	return s
}

// Available reports whether the provider client was configured.
func (s *LLMService) Available() bool {
	return s.client != nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("error closing GenAI client")
		} else {
			s.logger.Debug().Msg("GenAI client closed")
		}
	}
}

// Complete sends text as a single prompt and returns the reply verbatim.
func (s *LLMService) Complete(ctx context.Context, text string) (string, error) {
	if s.client == nil {
		return "", ErrServiceUnavailable
	}

	start := time.Now()
	model := s.client.GenerativeModel(s.modelName)
	resp, err := model.GenerateContent(ctx, genai.Text(text))
	metrics.AIRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}

	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini response had no candidates")
	}

	var responseText strings.Builder
	textParts := 0
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
			textParts++
		}
	}
	if textParts == 0 {
		return "", errors.New("gemini response contained no text parts")
	}
	return responseText.String(), nil
}

// ListModels returns the names of provider models that support generateContent.
func (s *LLMService) ListModels(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, ErrServiceUnavailable
	}

	var names []string
	it := s.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		for _, method := range m.SupportedGenerationMethods {
			if method == generateContentMethod {
				names = append(names, m.Name)
				break
			}
		}
	}
	return names, nil
}
