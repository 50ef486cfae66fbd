package core

import (
	"context"

	"github.com/lectern-ai/lectern/internal/models"
)

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (string, error)
	Chat(ctx context.Context, systemPrompt string, history []models.ChatTurn, userPrompt string) (string, error)
}
