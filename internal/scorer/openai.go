package scorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/couchcryptid/climate-trends-analytics/internal/config"
	"github.com/couchcryptid/climate-trends-analytics/internal/domain"
)

// scoreBatchSize bounds posts per API request to keep prompts small.
const scoreBatchSize = 20

const systemPrompt = "You rate the sentiment of social media posts about climate activism. " +
	"Respond with only a JSON array of numbers, one per numbered post, " +
	"each between -1 (strongly negative) and 1 (strongly positive)."

// OpenAI scores post texts through the Chat Completions API.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func newOpenAI(cfg config.ScorerConfig, logger *slog.Logger) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai scorer requires an API key")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Name returns the provider name.
func (s *OpenAI) Name() string { return "openai" }

// Score rates each text in [-1,1], batching API requests. The returned slice
// is index-aligned with texts.
func (s *OpenAI) Score(ctx context.Context, texts []string) ([]float64, error) {
	out := make([]float64, 0, len(texts))
	for start := 0; start < len(texts); start += scoreBatchSize {
		end := min(start+scoreBatchSize, len(texts))
		scores, err := s.scoreBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, scores...)
	}
	return out, nil
}

func (s *OpenAI) scoreBatch(ctx context.Context, texts []string) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var sb strings.Builder
	for i, text := range texts {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, text)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: sb.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai scorer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai scorer: empty response")
	}

	s.logger.Debug("scored batch", "posts", len(texts), "model", s.model)
	return parseScores(resp.Choices[0].Message.Content, len(texts))
}

// parseScores decodes the model's JSON array, tolerating markdown fences, and
// clamps every value into [-1,1].
func parseScores(content string, want int) ([]float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var scores []float64
	if err := json.Unmarshal([]byte(content), &scores); err != nil {
		return nil, fmt.Errorf("openai scorer: parse response: %w", err)
	}
	if len(scores) != want {
		return nil, fmt.Errorf("openai scorer: got %d scores for %d posts", len(scores), want)
	}
	for i, v := range scores {
		scores[i] = domain.ClampSentiment(v)
	}
	return scores, nil
}
