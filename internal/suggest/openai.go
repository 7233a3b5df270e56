// Package suggest turns a PRD section's draft text into short improvement
// suggestions using an OpenAI-compatible chat completion endpoint.
package suggest

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const maxSuggestions = 5

const systemPrompt = "You review product requirement documents. Given one " +
	"section of a draft PRD, reply with up to five concrete suggestions to " +
	"improve it, one per line, no numbering, no preamble. Suggestions must " +
	"be specific to the text, not generic writing advice."

// Service calls a chat completion API for suggestions. A custom base URL
// lets it point at any compatible provider.
type Service struct {
	client *openai.Client
	model  string
}

func New(apiKey, baseURL, model string) *Service {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Service{client: openai.NewClientWithConfig(cfg), model: model}
}

// GenerateSuggestions asks the model for improvements to one section. extra
// carries optional surrounding context the client chose to include.
func (s *Service) GenerateSuggestions(ctx context.Context, content, section, extra string) ([]string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Section: %s\n\n%s", section, content)
	if extra != "" {
		fmt.Fprintf(&prompt, "\n\nDocument context:\n%s", extra)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return []string{}, nil
	}
	return parseSuggestions(resp.Choices[0].Message.Content), nil
}

// parseSuggestions splits the model reply into one suggestion per line,
// stripping list markers the model sometimes adds despite the prompt.
func parseSuggestions(reply string) []string {
	out := []string{}
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*• \t")
		for i := 1; i <= maxSuggestions; i++ {
			line = strings.TrimPrefix(line, fmt.Sprintf("%d. ", i))
		}
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
