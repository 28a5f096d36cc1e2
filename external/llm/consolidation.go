package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leep66666/smart-job-assistant-backend/internal/consolidate"
)

const consolidationTemperature = 0.0

// QwenConsolidationModel merges transcript fragments through the chat
// API with a deterministic temperature.
type QwenConsolidationModel struct {
	client *chatClient
	model  string
}

func NewQwenConsolidationModel(baseURL, apiKey, model string) consolidate.Model {
	return &QwenConsolidationModel{
		client: newChatClient(baseURL, apiKey),
		model:  model,
	}
}

func (m *QwenConsolidationModel) Consolidate(ctx context.Context, texts []string) (string, error) {
	slog.Debug("consolidating fragments via chat model", "model", m.model, "fragment_count", len(texts))
	merged, err := m.client.complete(ctx, m.model, consolidationSystemPrompt, consolidationUserPrompt(texts), consolidationTemperature)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(merged), nil
}
