package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/leep66666/smart-job-assistant-backend/internal/consolidate"
	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
	"github.com/leep66666/smart-job-assistant-backend/internal/repository"
	"github.com/leep66666/smart-job-assistant-backend/internal/webhook"
)

type mockStream struct {
	mu              sync.Mutex
	sent            [][]byte
	sendErr         error
	closeSendCalled bool
	closed          bool
	ackOnCloseSend  func()
}

func (m *mockStream) Send(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)
	m.sent = append(m.sent, buf)
	return nil
}

func (m *mockStream) CloseSend() error {
	m.mu.Lock()
	ack := m.ackOnCloseSend
	m.closeSendCalled = true
	m.mu.Unlock()
	if ack != nil {
		ack()
	}
	return nil
}

func (m *mockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockStream) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type mockChannel struct {
	mu       sync.Mutex
	openErr  error
	stream   *mockStream
	receiver asr.Receiver
}

func (m *mockChannel) Open(_ context.Context, _ string, receiver asr.Receiver) (asr.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	if m.stream == nil {
		m.stream = &mockStream{}
	}
	m.receiver = receiver
	// the remote acknowledges end-of-stream right after CloseSend
	m.stream.ackOnCloseSend = func() { receiver.OnClosed() }
	return m.stream, nil
}

type mockEvaluator struct {
	mu     sync.Mutex
	result *evaluate.Result
	err    error
	calls  int
}

func (m *mockEvaluator) Evaluate(_ context.Context, _, _ string) (*evaluate.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.result, m.err
}

func (m *mockEvaluator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRepository struct {
	mu          sync.Mutex
	createCalls []repository.CreateSessionInput
	recordCalls []repository.RecordArtifactsInput
}

func (m *mockRepository) CreateSession(_ context.Context, input repository.CreateSessionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, input)
	return nil
}

func (m *mockRepository) RecordArtifacts(_ context.Context, input repository.RecordArtifactsInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCalls = append(m.recordCalls, input)
	return nil
}

func (m *mockRepository) ListFragmentsBySessionID(_ context.Context, _ string) ([]repository.Fragment, error) {
	return nil, nil
}

func (m *mockRepository) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recordCalls)
}

type mockWebhookSender struct {
	mu    sync.Mutex
	calls []webhook.CompletionPayload
}

func (m *mockWebhookSender) SendCompletion(_ context.Context, payload webhook.CompletionPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, payload)
	return nil
}

func (m *mockWebhookSender) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                   "test",
		HTTPListenAddr:        ":0",
		DatabaseURL:           "postgres://localhost/test",
		ASRProvider:           config.ASRProviderRTASR,
		XfyunAppID:            "app",
		XfyunAPIKey:           "key",
		QuestionDurationSec:   180,
		ConnectTimeoutSec:     2,
		MaxSessionDurationMin: 1,
		DrainGraceSec:         1,
		ConsolidateTimeoutSec: 2,
		EvaluateTimeoutSec:    2,
	}
}

func newTestManager(channel asr.Channel, evaluator evaluate.Evaluator, repo repository.Repository, wh webhook.Sender) *Manager {
	consolidator := consolidate.NewConsolidator(nil, time.Second)
	return NewManager(testConfig(), channel, consolidator, evaluator, repo, wh)
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestOpen_HandshakeFailureSurfacedToCaller(t *testing.T) {
	channel := &mockChannel{openErr: errors.New("handshake rejected")}
	manager := newTestManager(channel, nil, nil, nil)

	_, err := manager.Open(context.Background(), "q1", "question text")
	if err == nil {
		t.Fatal("expected connect error to surface")
	}
	if err := manager.Submit("missing", Chunk{Sequence: 1}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected no active session, got %v", err)
	}
}

func TestSubmit_RejectsOutOfOrderWithoutMovingCounter(t *testing.T) {
	channel := &mockChannel{}
	manager := newTestManager(channel, nil, nil, nil)
	s, err := manager.Open(context.Background(), "q1", "question")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	if err := manager.Submit(s.ID, Chunk{Sequence: 1, Data: []byte("a")}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if err := manager.Submit(s.ID, Chunk{Sequence: 1, Data: []byte("dup")}); !errors.Is(err, ErrOutOfOrderChunk) {
		t.Fatalf("expected out-of-order rejection, got %v", err)
	}
	if err := manager.Submit(s.ID, Chunk{Sequence: 0, Data: []byte("old")}); !errors.Is(err, ErrOutOfOrderChunk) {
		t.Fatalf("expected out-of-order rejection, got %v", err)
	}
	// rejection must not advance the counter
	if err := manager.Submit(s.ID, Chunk{Sequence: 2, Data: []byte("b")}); err != nil {
		t.Fatalf("expected next in-order chunk to be accepted, got %v", err)
	}

	waitUntil(t, time.Second, func() bool { return channel.stream.sentCount() == 2 }, "expected exactly the accepted chunks to be forwarded")
}

func TestEnd_CompletesAndConsolidates(t *testing.T) {
	channel := &mockChannel{}
	repo := &mockRepository{}
	wh := &mockWebhookSender{}
	evaluator := &mockEvaluator{result: &evaluate.Result{OverallScore: 80, Summary: "solid"}}
	manager := newTestManager(channel, evaluator, repo, wh)

	s, err := manager.Open(context.Background(), "q1", "tell me about a project")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if len(repo.createCalls) != 1 || repo.createCalls[0].SessionID != s.ID {
		t.Fatalf("expected session start to be recorded, got %+v", repo.createCalls)
	}

	if err := manager.Submit(s.ID, Chunk{Sequence: 1, Data: []byte("audio")}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	channel.receiver.OnResult(asr.Result{WindowID: 0, Text: "I worked on", IsFinal: false})
	channel.receiver.OnResult(asr.Result{WindowID: 0, Text: "I worked on a caching layer", IsFinal: true})
	if err := manager.Submit(s.ID, Chunk{Sequence: 2, Last: true}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	outcome, err := manager.End(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected end error: %v", err)
	}
	if outcome.State != StateCompleted || outcome.EndReason != ReasonCompleted {
		t.Fatalf("unexpected terminal state: %+v", outcome)
	}
	if outcome.Answer.Text != "I worked on a caching layer" || outcome.Answer.Method != consolidate.MethodFallback {
		t.Fatalf("unexpected answer: %+v", outcome.Answer)
	}
	if outcome.Evaluation == nil || outcome.Evaluation.OverallScore != 80 {
		t.Fatalf("unexpected evaluation: %+v", outcome.Evaluation)
	}
	if !channel.stream.closeSendCalled {
		t.Fatal("expected outbound stream to be closed for drain")
	}

	waitUntil(t, time.Second, func() bool { return repo.recordCount() == 1 }, "expected artifacts to be recorded")
	waitUntil(t, time.Second, func() bool { return wh.callCount() == 1 }, "expected completion webhook")

	got := repo.recordCalls[0]
	if got.State != repository.SessionStateCompleted || len(got.Fragments) != 2 {
		t.Fatalf("unexpected artifact bundle: %+v", got)
	}
	if got.EvaluationJSON == nil {
		t.Fatal("expected evaluation payload in artifact bundle")
	}

	if _, err := manager.End(context.Background(), s.ID); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected session to be gone after end, got %v", err)
	}
}

func TestEnd_EmptyFragmentsSkipsEvaluation(t *testing.T) {
	channel := &mockChannel{}
	evaluator := &mockEvaluator{result: &evaluate.Result{OverallScore: 99}}
	manager := newTestManager(channel, evaluator, nil, nil)

	s, err := manager.Open(context.Background(), "q1", "question")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}

	outcome, err := manager.End(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected end error: %v", err)
	}
	if outcome.Answer.Text != "" || outcome.Answer.Method != consolidate.MethodFallback {
		t.Fatalf("expected empty fallback answer, got %+v", outcome.Answer)
	}
	if outcome.Evaluation != nil {
		t.Fatalf("expected evaluation to be skipped, got %+v", outcome.Evaluation)
	}
	if evaluator.callCount() != 0 {
		t.Fatalf("expected evaluator not to be called, got %d calls", evaluator.callCount())
	}
}

func TestEnd_EvaluatorFailureDegradesToAbsent(t *testing.T) {
	channel := &mockChannel{}
	evaluator := &mockEvaluator{err: errors.New("evaluator timeout")}
	manager := newTestManager(channel, evaluator, nil, nil)

	s, err := manager.Open(context.Background(), "q1", "question")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	channel.receiver.OnResult(asr.Result{WindowID: 0, Text: "a complete answer text", IsFinal: true})

	outcome, err := manager.End(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected end error: %v", err)
	}
	if outcome.Answer.Text != "a complete answer text" {
		t.Fatalf("expected answer to survive evaluator failure, got %+v", outcome.Answer)
	}
	if outcome.Evaluation != nil {
		t.Fatalf("expected absent evaluation, got %+v", outcome.Evaluation)
	}
}

func TestCancel_ForcesFailedAndStillConsolidates(t *testing.T) {
	channel := &mockChannel{}
	manager := newTestManager(channel, nil, nil, nil)

	s, err := manager.Open(context.Background(), "q1", "question")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	channel.receiver.OnResult(asr.Result{WindowID: 0, Text: "partial answer before abort", IsFinal: true})

	if err := manager.Cancel(s.ID); err != nil {
		t.Fatalf("unexpected cancel error: %v", err)
	}
	if s.State() != StateFailed || s.EndReason() != ReasonCancelled {
		t.Fatalf("unexpected state after cancel: %s/%s", s.State(), s.EndReason())
	}
	if !channel.stream.closed {
		t.Fatal("expected channel to be closed without drain")
	}

	outcome, err := manager.End(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected end error: %v", err)
	}
	if outcome.Answer.Text != "partial answer before abort" {
		t.Fatalf("expected answer from partial fragments, got %+v", outcome.Answer)
	}
	if outcome.State != StateFailed || outcome.EndReason != ReasonCancelled {
		t.Fatalf("unexpected outcome state: %+v", outcome)
	}
}

func TestSession_ChannelErrorPreservesFragments(t *testing.T) {
	channel := &mockChannel{}
	manager := newTestManager(channel, nil, nil, nil)

	s, err := manager.Open(context.Background(), "q1", "question")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	channel.receiver.OnResult(asr.Result{WindowID: 0, Text: "words before the disconnect", IsFinal: true})
	channel.receiver.OnError(errors.New("connection reset"))

	waitUntil(t, time.Second, func() bool { return s.State() == StateFailed }, "expected failed state after channel error")
	if s.EndReason() != ReasonChannelError {
		t.Fatalf("unexpected end reason: %s", s.EndReason())
	}

	outcome, err := manager.End(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("unexpected end error: %v", err)
	}
	if outcome.Answer.Text != "words before the disconnect" {
		t.Fatalf("expected partial fragments to survive, got %+v", outcome.Answer)
	}
}

func TestSession_SubmitAfterDrainRejected(t *testing.T) {
	channel := &mockChannel{}
	manager := newTestManager(channel, nil, nil, nil)

	s, err := manager.Open(context.Background(), "q1", "question")
	if err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := manager.Submit(s.ID, Chunk{Sequence: 1, Data: []byte("a"), Last: true}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}
	if err := manager.Submit(s.ID, Chunk{Sequence: 2, Data: []byte("late")}); !errors.Is(err, ErrSessionNotStreaming) {
		t.Fatalf("expected rejection after end-of-stream, got %v", err)
	}
}

func TestSession_DrainGraceExpiryCompletes(t *testing.T) {
	stream := &mockStream{}
	s := newSession("s-1", "q1", "question", 30*time.Millisecond)
	s.start(stream, time.Minute)

	// remote never acknowledges the drain
	if err := s.Submit(Chunk{Sequence: 1, Data: []byte("a"), Last: true}); err != nil {
		t.Fatalf("unexpected submit error: %v", err)
	}

	waitUntil(t, time.Second, func() bool { return s.State() == StateCompleted }, "expected completion after grace expiry")
	if s.EndReason() != ReasonCompleted {
		t.Fatalf("unexpected end reason: %s", s.EndReason())
	}
}

func TestSession_MaxDurationFails(t *testing.T) {
	stream := &mockStream{}
	s := newSession("s-1", "q1", "question", time.Second)
	s.start(stream, 20*time.Millisecond)

	waitUntil(t, time.Second, func() bool { return s.State() == StateFailed }, "expected failure on max duration")
	if s.EndReason() != ReasonMaxDuration {
		t.Fatalf("unexpected end reason: %s", s.EndReason())
	}
	if !stream.closed {
		t.Fatal("expected stream to be torn down")
	}
}
