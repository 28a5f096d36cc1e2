package asr

import "context"

// Result is one transcript event from the remote recognizer. WindowID
// identifies the time window the text belongs to; provider adapters map
// whatever correction key their service emits onto it.
type Result struct {
	WindowID int
	Text     string
	IsFinal  bool
}

// Receiver gets inbound events from an open stream. Calls are made from
// the adapter's receive goroutine, one at a time.
type Receiver interface {
	OnResult(r Result)
	OnError(err error)
	// OnClosed fires when the remote acknowledges end-of-stream after
	// CloseSend, meaning no further results will arrive.
	OnClosed()
}

// Stream is the outbound half of one recognizer connection.
type Stream interface {
	Send(frame []byte) error
	// CloseSend flushes buffered audio and tells the remote no more
	// audio is coming; results may keep arriving until OnClosed.
	CloseSend() error
	// Close tears the connection down without waiting for a drain.
	Close() error
}

// Channel opens one recognizer connection per transcription session.
// Any provider exposing this shape is substitutable.
type Channel interface {
	Open(ctx context.Context, sessionID string, receiver Receiver) (Stream, error)
}
