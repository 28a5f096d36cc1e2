package webhook

import (
	"context"

	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
)

const CompletionWebhookSchemaVersion = 1

// CompletionPayload is posted when a transcription session reaches a
// terminal state. Evaluation is null when the evaluator was unavailable.
type CompletionPayload struct {
	SchemaVersion       int              `json:"schemaVersion"`
	SessionID           string           `json:"sessionId"`
	AnswerID            string           `json:"answerId"`
	Question            string           `json:"question"`
	State               string           `json:"state"`
	EndReason           string           `json:"endReason,omitempty"`
	StartAt             string           `json:"startAt"`
	EndAt               string           `json:"endAt"`
	Transcript          string           `json:"transcript"`
	ConsolidationMethod string           `json:"consolidationMethod"`
	FragmentCount       int              `json:"fragmentCount"`
	Evaluation          *evaluate.Result `json:"evaluation"`
}

type Sender interface {
	SendCompletion(ctx context.Context, payload CompletionPayload) error
}
