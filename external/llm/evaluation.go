package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
)

const evaluationTemperature = 0.3

// QwenEvaluator scores a consolidated answer against the interview
// rubric. Any remote or parse failure is returned as an error; the
// caller treats the evaluation as absent.
type QwenEvaluator struct {
	client *chatClient
	model  string
}

func NewQwenEvaluator(baseURL, apiKey, model string) evaluate.Evaluator {
	return &QwenEvaluator{
		client: newChatClient(baseURL, apiKey),
		model:  model,
	}
}

type evaluationInput struct {
	Question         string `json:"question"`
	AnswerTranscript string `json:"answerTranscript"`
}

func (e *QwenEvaluator) Evaluate(ctx context.Context, question, answer string) (*evaluate.Result, error) {
	userPrompt, err := json.Marshal(evaluationInput{Question: question, AnswerTranscript: answer})
	if err != nil {
		return nil, err
	}

	slog.Debug("evaluating answer via chat model", "model", e.model)
	content, err := e.client.complete(ctx, e.model, evaluationSystemPrompt, string(userPrompt), evaluationTemperature)
	if err != nil {
		return nil, err
	}

	var result evaluate.Result
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &result); err != nil {
		return nil, fmt.Errorf("evaluation model returned malformed JSON: %w", err)
	}
	return &result, nil
}

// stripCodeFence unwraps a ```json ... ``` block if the model ignored
// the strict-JSON instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
