package webhook

import (
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/leep66666/smart-job-assistant-backend/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (webhook.Sender, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPSender(c.CompletionWebhookURL), nil
	})
}
