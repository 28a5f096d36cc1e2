package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
	"github.com/leep66666/smart-job-assistant-backend/internal/transcript"
)

type State string

const (
	StateConnecting State = "connecting"
	StateStreaming  State = "streaming"
	StateDraining   State = "draining"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

type EndReason string

const (
	ReasonNone         EndReason = ""
	ReasonCompleted    EndReason = "completed"
	ReasonConnectError EndReason = "connect_error"
	ReasonChannelError EndReason = "channel_error"
	ReasonCancelled    EndReason = "cancelled"
	ReasonMaxDuration  EndReason = "max_duration"
)

const sendQueueSize = 64

// Session owns one recognizer connection for one candidate answer. Two
// goroutines cooperate over it: the send loop forwards accepted chunks,
// and the adapter's receive loop appends fragments through the Receiver
// callbacks. They share only the fragment log and the send queue.
type Session struct {
	ID       string
	AnswerID string
	Question string

	StartedAt time.Time

	log        *transcript.Log
	feed       feeder
	drainGrace time.Duration

	mu        sync.Mutex
	state     State
	endReason EndReason
	endedAt   time.Time
	stream    asr.Stream
	maxTimer  *time.Timer

	sendCh       chan Chunk
	drainOnce    sync.Once
	drainCh      chan struct{}
	remoteOnce   sync.Once
	remoteClosed chan struct{}
	done         chan struct{}
}

func newSession(id, answerID, question string, drainGrace time.Duration) *Session {
	return &Session{
		ID:           id,
		AnswerID:     answerID,
		Question:     question,
		StartedAt:    time.Now(),
		log:          transcript.NewLog(),
		drainGrace:   drainGrace,
		state:        StateConnecting,
		sendCh:       make(chan Chunk, sendQueueSize),
		drainCh:      make(chan struct{}),
		remoteClosed: make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// start moves a connected session into STREAMING and launches the send
// loop and the max-duration watchdog.
func (s *Session) start(stream asr.Stream, maxDuration time.Duration) {
	s.mu.Lock()
	s.stream = stream
	s.state = StateStreaming
	s.maxTimer = time.AfterFunc(maxDuration, func() {
		slog.Warn("session exceeded max duration", "session_id", s.ID)
		s.fail(ReasonMaxDuration)
	})
	s.mu.Unlock()
	go s.sendLoop()
}

// Submit implements the feeder contract: monotonic sequence enforcement,
// then forwarding to the open stream. An end-of-stream chunk starts the
// drain.
func (s *Session) Submit(c Chunk) error {
	if s.State() != StateStreaming {
		return ErrSessionNotStreaming
	}
	if err := s.feed.accept(c.Sequence); err != nil {
		return err
	}
	select {
	case s.sendCh <- c:
	case <-s.done:
		return ErrSessionNotStreaming
	}
	if c.Last {
		s.beginDrain()
	}
	return nil
}

// EndInput is the caller-issued end of audio without a Last-flagged
// chunk; it starts the drain just like one.
func (s *Session) EndInput() {
	s.beginDrain()
}

// Cancel forces an immediate FAILED state and closes the channel without
// waiting for a drain. Captured fragments stay available.
func (s *Session) Cancel() {
	s.fail(ReasonCancelled)
}

// Wait blocks until the session reaches a terminal state.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) EndReason() EndReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endReason
}

func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

// Fragments exposes everything captured so far, including on failed
// sessions, so consolidation can run on partial data.
func (s *Session) Fragments() []transcript.Fragment {
	return s.log.All()
}

func (s *Session) beginDrain() {
	s.mu.Lock()
	if s.state == StateStreaming {
		s.state = StateDraining
	}
	s.mu.Unlock()
	s.drainOnce.Do(func() { close(s.drainCh) })
}

func (s *Session) sendLoop() {
	for {
		select {
		case c := <-s.sendCh:
			if !s.forward(c) {
				return
			}
			if c.Last {
				s.finishSending()
				return
			}
		case <-s.drainCh:
			// flush whatever the feeder already accepted
			for {
				select {
				case c := <-s.sendCh:
					if !s.forward(c) {
						return
					}
				default:
					s.finishSending()
					return
				}
			}
		case <-s.done:
			return
		}
	}
}

func (s *Session) forward(c Chunk) bool {
	if len(c.Data) == 0 {
		return true
	}
	if err := s.stream.Send(c.Data); err != nil {
		slog.Error("failed to forward audio chunk", "error", err, "session_id", s.ID, "sequence", c.Sequence)
		s.fail(ReasonChannelError)
		return false
	}
	return true
}

// finishSending closes the outbound direction and waits out the DRAINING
// grace period for in-flight results before completing.
func (s *Session) finishSending() {
	if err := s.stream.CloseSend(); err != nil {
		slog.Warn("failed to close outbound stream", "error", err, "session_id", s.ID)
	}
	select {
	case <-s.remoteClosed:
	case <-time.After(s.drainGrace):
		slog.Warn("drain grace period expired", "session_id", s.ID, "grace", s.drainGrace)
	case <-s.done:
		return
	}
	s.complete()
}

func (s *Session) complete() {
	s.mu.Lock()
	if s.state == StateCompleted || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateCompleted
	s.endReason = ReasonCompleted
	s.endedAt = time.Now()
	stream := s.stream
	timer := s.maxTimer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if stream != nil {
		_ = stream.Close()
	}
	close(s.done)
	slog.Info("session completed", "session_id", s.ID, "fragments", s.log.Len())
}

func (s *Session) fail(reason EndReason) {
	s.mu.Lock()
	if s.state == StateCompleted || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.endReason = reason
	s.endedAt = time.Now()
	stream := s.stream
	timer := s.maxTimer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if stream != nil {
		_ = stream.Close()
	}
	close(s.done)
	slog.Warn("session failed", "session_id", s.ID, "reason", string(reason), "fragments", s.log.Len())
}

// OnResult implements asr.Receiver. The adapter's receive goroutine is
// the only writer of the fragment log.
func (s *Session) OnResult(r asr.Result) {
	f := s.log.Append(transcript.Fragment{
		WindowID:   r.WindowID,
		Text:       r.Text,
		IsFinal:    r.IsFinal,
		ReceivedAt: time.Now(),
	})
	slog.Debug("fragment received", "session_id", s.ID, "sequence", f.Sequence, "window_id", f.WindowID, "final", f.IsFinal)
}

// OnError implements asr.Receiver.
func (s *Session) OnError(err error) {
	slog.Error("recognizer stream error", "error", err, "session_id", s.ID)
	s.fail(ReasonChannelError)
}

// OnClosed implements asr.Receiver.
func (s *Session) OnClosed() {
	s.remoteOnce.Do(func() { close(s.remoteClosed) })
}
