package judge

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You review source code against a stated policy rule.
Answer with exactly "no finding" when the code complies.
Otherwise answer with one short sentence naming the violation.`

// OpenAIJudge asks an OpenAI-compatible chat endpoint for a verdict.
type OpenAIJudge struct {
	client *openai.Client
	model  string
}

// OpenAIConfig for the judged-reasoning collaborator.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // optional, for compatible endpoints
	Model   string // default: gpt-4o-mini
}

// NewOpenAIJudge creates a judge backed by a chat completion endpoint.
func NewOpenAIJudge(cfg OpenAIConfig) (*OpenAIJudge, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("judge: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIJudge{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Verdict implements Judge.
func (j *OpenAIJudge) Verdict(ctx context.Context, prompt string) (string, error) {
	resp, err := j.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       j.model,
		Temperature: 0,
		MaxTokens:   200,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("judge: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("judge: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
