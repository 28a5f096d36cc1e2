package httpapi

import (
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"
	"github.com/leep66666/smart-job-assistant-backend/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		store := do.MustInvoke[*interview.Store](i)
		manager := do.MustInvoke[*session.Manager](i)
		return NewServer(store, manager), nil
	})
}
