package llm

import (
	"log/slog"

	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/leep66666/smart-job-assistant-backend/internal/consolidate"
	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (consolidate.Model, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.QwenAPIKey == "" {
			slog.Warn("no chat API key configured; consolidation model disabled")
			return nil, nil
		}
		return NewQwenConsolidationModel(c.QwenBaseURL, c.QwenAPIKey, c.ConsolidationModel), nil
	})

	do.Provide(injector, func(i do.Injector) (evaluate.Evaluator, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.QwenAPIKey == "" {
			slog.Warn("no chat API key configured; answer evaluation disabled")
			return nil, nil
		}
		return NewQwenEvaluator(c.QwenBaseURL, c.QwenAPIKey, c.EvaluationModel), nil
	})
}
