package interview

import (
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Store, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewStore(cfg.QuestionDurationSec), nil
	})
}
