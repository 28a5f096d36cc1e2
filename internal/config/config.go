package config

import "fmt"

const (
	ASRProviderRTASR       = "rtasr"
	ASRProviderCloudSpeech = "google"
)

type Config struct {
	Env            string
	HTTPListenAddr string
	DatabaseURL    string

	ASRProvider                string
	XfyunAppID                 string
	XfyunAPIKey                string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	TranscribeLanguage         string

	QwenAPIKey            string
	QwenBaseURL           string
	ConsolidationModel    string
	EvaluationModel       string
	UseModelConsolidation bool
	QuestionDurationSec   int
	CompletionWebhookURL  string

	ConnectTimeoutSec     int
	MaxSessionDurationMin int
	DrainGraceSec         int
	ConsolidateTimeoutSec int
	EvaluateTimeoutSec    int
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.ASRProvider {
	case ASRProviderRTASR:
		if c.XfyunAppID == "" || c.XfyunAPIKey == "" {
			return fmt.Errorf("XFYUN_APPID and XFYUN_API_KEY are required when ASR_PROVIDER=%s", ASRProviderRTASR)
		}
	case ASRProviderCloudSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when ASR_PROVIDER=%s", ASRProviderCloudSpeech)
		}
	default:
		return fmt.Errorf("ASR_PROVIDER must be %q or %q, got %q", ASRProviderRTASR, ASRProviderCloudSpeech, c.ASRProvider)
	}
	for _, d := range c.positiveFieldChecks() {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", d.name, d.value)
		}
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "HTTP_LISTEN_ADDR", value: c.HTTPListenAddr},
		{name: "DATABASE_URL", value: c.DatabaseURL},
		{name: "ASR_PROVIDER", value: c.ASRProvider},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "QUESTION_DURATION_SEC", value: c.QuestionDurationSec},
		{name: "ASR_CONNECT_TIMEOUT_SEC", value: c.ConnectTimeoutSec},
		{name: "MAX_SESSION_DURATION_MIN", value: c.MaxSessionDurationMin},
		{name: "DRAIN_GRACE_SEC", value: c.DrainGraceSec},
		{name: "CONSOLIDATE_TIMEOUT_SEC", value: c.ConsolidateTimeoutSec},
		{name: "EVALUATE_TIMEOUT_SEC", value: c.EvaluateTimeoutSec},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
