package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var ErrNoAPIKey = errors.New("no openai api key configured")

const (
	maxTranscriptChars = 12000
	summaryMaxTokens   = 300
	summaryTemperature = 0.7
)

const summarizeSystemPrompt = `Eres un analista económico y financiero experto en resumir contenido de videos sobre economía y mercados financieros.`

const summarizePrompt = `Eres un analista económico y financiero. Resumes el contenido de videos de YouTube sobre realidad económica y mercados.

Video: %s
Canal: %s

Transcripción:
%s

Objetivo: dar un resumen breve y claro, en español, de lo que se dijo en el video, destacando:
- Contexto económico principal
- Mensajes clave del expositor
- Impacto potencial en Argentina y/o mercados financieros
- Riesgos y oportunidades mencionadas (si aplica)

Estilo: frases cortas, claras, sin opinión personal.
Longitud: máximo 6-8 líneas.

Resumen:`

type OpenAISummarizer struct {
	client *openai.Client
}

// NewOpenAISummarizer builds a summarizer. An empty api key yields a
// summarizer that fails with ErrNoAPIKey instead of calling out.
func NewOpenAISummarizer(apiKey string) *OpenAISummarizer {
	if apiKey == "" {
		return &OpenAISummarizer{}
	}

	return &OpenAISummarizer{client: openai.NewClient(apiKey)}
}

// Summarize sends the transcript with its video context to the model and
// returns the digest. The transcript is truncated to bound request size.
func (sum *OpenAISummarizer) Summarize(ctx context.Context, transcript, title, channelName string) (string, error) {
	if sum.client == nil {
		return "", ErrNoAPIKey
	}
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars] + "..."
	}

	resp, err := sum.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: openai.GPT4oMini,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: summarizeSystemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(summarizePrompt, title, channelName, transcript),
				},
			},
			MaxTokens:   summaryMaxTokens,
			Temperature: summaryTemperature,
		})
	if err != nil {
		return "", fmt.Errorf("failed to fetch summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return strings.TrimSpace(resp.Choices[len(resp.Choices)-1].Message.Content), nil
}
