package repository

import "time"

type SessionState string

const (
	SessionStateCompleted SessionState = "completed"
	SessionStateFailed    SessionState = "failed"
)

type Session struct {
	ID        string
	AnswerID  string
	Question  string
	State     SessionState
	EndReason string
	StartedAt time.Time
	EndedAt   *time.Time
	CreatedAt time.Time
}

type Fragment struct {
	SessionID  string
	Sequence   int
	WindowID   int
	Content    string
	IsFinal    bool
	ReceivedAt time.Time
}

type Consolidation struct {
	SessionID           string
	Method              string
	Content             string
	SourceFragmentCount int
	CreatedAt           time.Time
}

type Evaluation struct {
	SessionID string
	Payload   []byte
	CreatedAt time.Time
}
