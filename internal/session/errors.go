package session

import "errors"

var (
	// ErrNoActiveSession means the target session does not exist or has
	// already been finished and removed.
	ErrNoActiveSession = errors.New("no active transcription session")

	// ErrOutOfOrderChunk is a caller protocol violation; the session
	// keeps running and the caller must resend in order.
	ErrOutOfOrderChunk = errors.New("audio chunk sequence is not monotonically increasing")

	// ErrSessionNotStreaming means the session stopped accepting audio,
	// either because draining started or it reached a terminal state.
	ErrSessionNotStreaming = errors.New("session is not accepting audio")
)
