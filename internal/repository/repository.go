package repository

import (
	"context"
	"time"
)

type CreateSessionInput struct {
	SessionID string
	AnswerID  string
	Question  string
	StartedAt time.Time
}

type FragmentInput struct {
	Sequence   int
	WindowID   int
	Content    string
	IsFinal    bool
	ReceivedAt time.Time
}

// RecordArtifactsInput is the full session artifact bundle written once
// the session reaches a terminal state. EvaluationJSON is nil when the
// evaluator was unavailable.
type RecordArtifactsInput struct {
	SessionID           string
	State               SessionState
	EndReason           string
	EndedAt             time.Time
	Fragments           []FragmentInput
	Method              string
	ConsolidatedText    string
	SourceFragmentCount int
	EvaluationJSON      []byte
}

// Repository is the durable store behind the session recorder. Artifact
// writes are idempotent appends keyed by session id; callers treat
// failures as best-effort and never roll back the in-flight answer.
type Repository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) error
	RecordArtifacts(ctx context.Context, input RecordArtifactsInput) error
	ListFragmentsBySessionID(ctx context.Context, sessionID string) ([]Fragment, error)
}
