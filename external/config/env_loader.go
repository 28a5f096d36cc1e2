package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/leep66666/smart-job-assistant-backend/internal/config"
)

type envConfig struct {
	Env            string `env:"ENV" envDefault:"production"`
	HTTPListenAddr string `env:"HTTP_LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL    string `env:"DATABASE_URL,required"`

	ASRProvider                string `env:"ASR_PROVIDER" envDefault:"rtasr"`
	XfyunAppID                 string `env:"XFYUN_APPID"`
	XfyunAPIKey                string `env:"XFYUN_API_KEY"`
	GoogleCloudProjectID       string `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	TranscribeLanguage         string `env:"TRANSCRIBE_LANGUAGE" envDefault:"cmn-Hans-CN"`

	QwenAPIKey            string `env:"QWEN_API_KEY"`
	QwenBaseURL           string `env:"QWEN_BASE_URL" envDefault:"https://dashscope.aliyuncs.com/compatible-mode/v1"`
	ConsolidationModel    string `env:"CONSOLIDATION_MODEL" envDefault:"qwen-plus"`
	EvaluationModel       string `env:"INTERVIEW_EVAL_MODEL" envDefault:"qwen-plus"`
	UseModelConsolidation bool   `env:"USE_MODEL_CONSOLIDATION" envDefault:"true"`
	QuestionDurationSec   int    `env:"INTERVIEW_QUESTION_DURATION" envDefault:"180"`
	CompletionWebhookURL  string `env:"COMPLETION_WEBHOOK_URL"`

	ConnectTimeoutSec     int `env:"ASR_CONNECT_TIMEOUT_SEC" envDefault:"10"`
	MaxSessionDurationMin int `env:"MAX_SESSION_DURATION_MIN" envDefault:"10"`
	DrainGraceSec         int `env:"DRAIN_GRACE_SEC" envDefault:"5"`
	ConsolidateTimeoutSec int `env:"CONSOLIDATE_TIMEOUT_SEC" envDefault:"30"`
	EvaluateTimeoutSec    int `env:"EVALUATE_TIMEOUT_SEC" envDefault:"30"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		HTTPListenAddr:             raw.HTTPListenAddr,
		DatabaseURL:                raw.DatabaseURL,
		ASRProvider:                raw.ASRProvider,
		XfyunAppID:                 raw.XfyunAppID,
		XfyunAPIKey:                raw.XfyunAPIKey,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		TranscribeLanguage:         raw.TranscribeLanguage,
		QwenAPIKey:                 raw.QwenAPIKey,
		QwenBaseURL:                raw.QwenBaseURL,
		ConsolidationModel:         raw.ConsolidationModel,
		EvaluationModel:            raw.EvaluationModel,
		UseModelConsolidation:      raw.UseModelConsolidation,
		QuestionDurationSec:        raw.QuestionDurationSec,
		CompletionWebhookURL:       raw.CompletionWebhookURL,
		ConnectTimeoutSec:          raw.ConnectTimeoutSec,
		MaxSessionDurationMin:      raw.MaxSessionDurationMin,
		DrainGraceSec:              raw.DrainGraceSec,
		ConsolidateTimeoutSec:      raw.ConsolidateTimeoutSec,
		EvaluateTimeoutSec:         raw.EvaluateTimeoutSec,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
