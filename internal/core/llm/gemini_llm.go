package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/lectern-ai/lectern/internal/core"
	"github.com/lectern-ai/lectern/internal/models"
)

var _ core.LLMProvider = (*GeminiLLM)(nil)

type GeminiLLM struct {
	client    *genai.Client
	modelName string
}

func NewGeminiLLM(ctx context.Context, apiKey, modelName string) (*GeminiLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-pro"
	}
	return &GeminiLLM{client: cl, modelName: modelName}, nil
}

func (g *GeminiLLM) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return responseText(resp), nil
}

// Chat sends userPrompt with the prior turns attached as Gemini chat history.
func (g *GeminiLLM) Chat(ctx context.Context, systemPrompt string, history []models.ChatTurn, userPrompt string) (string, error) {
	m := g.client.GenerativeModel(g.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	cs := m.StartChat()
	cs.History = make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == models.ChatRoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini chat: %w", err)
	}
	return responseText(resp), nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
