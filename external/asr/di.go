package asr

import (
	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (asr.Channel, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.ASRProvider == config.ASRProviderCloudSpeech {
			return NewCloudSpeechChannel(CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Language:        c.TranscribeLanguage,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           c.GoogleCloudSpeechModel,
			}), nil
		}
		return NewRTASRChannel(RTASRConfig{
			AppID:  c.XfyunAppID,
			APIKey: c.XfyunAPIKey,
		}), nil
	})
}
