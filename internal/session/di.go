package session

import (
	"time"

	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/leep66666/smart-job-assistant-backend/internal/consolidate"
	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
	"github.com/leep66666/smart-job-assistant-backend/internal/repository"
	"github.com/leep66666/smart-job-assistant-backend/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*consolidate.Consolidator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		var model consolidate.Model
		if cfg.UseModelConsolidation {
			model = do.MustInvoke[consolidate.Model](i)
		}
		return consolidate.NewConsolidator(model, time.Duration(cfg.ConsolidateTimeoutSec)*time.Second), nil
	})

	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		channel := do.MustInvoke[asr.Channel](i)
		consolidator := do.MustInvoke[*consolidate.Consolidator](i)
		evaluator := do.MustInvoke[evaluate.Evaluator](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		return NewManager(cfg, channel, consolidator, evaluator, repo, wh), nil
	})
}
