package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leep66666/smart-job-assistant-backend/internal/asr"
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/leep66666/smart-job-assistant-backend/internal/consolidate"
	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
	"github.com/leep66666/smart-job-assistant-backend/internal/repository"
	"github.com/leep66666/smart-job-assistant-backend/internal/webhook"
)

const recordTimeout = 30 * time.Second

// Outcome is what endSession hands back to the caller: always an answer,
// evaluation when the evaluator was reachable.
type Outcome struct {
	SessionID  string
	AnswerID   string
	State      State
	EndReason  EndReason
	StartedAt  time.Time
	EndedAt    time.Time
	Answer     consolidate.Answer
	Evaluation *evaluate.Result
}

// Manager owns the live transcription sessions, one per in-progress
// answer, with no state shared across them.
type Manager struct {
	cfg          *config.Config
	channel      asr.Channel
	consolidator *consolidate.Consolidator
	evaluator    evaluate.Evaluator
	repo         repository.Repository
	webhook      webhook.Sender

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config, channel asr.Channel, consolidator *consolidate.Consolidator, evaluator evaluate.Evaluator, repo repository.Repository, wh webhook.Sender) *Manager {
	return &Manager{
		cfg:          cfg,
		channel:      channel,
		consolidator: consolidator,
		evaluator:    evaluator,
		repo:         repo,
		webhook:      wh,
		sessions:     make(map[string]*Session),
	}
}

// Open establishes the recognizer connection for one answer. A handshake
// failure is the one error surfaced to the caller; they may retry with a
// new session.
func (m *Manager) Open(ctx context.Context, answerID, question string) (*Session, error) {
	s := newSession(uuid.NewString(), answerID, question, time.Duration(m.cfg.DrainGraceSec)*time.Second)
	slog.Info("opening transcription session", "session_id", s.ID, "answer_id", answerID)

	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.ConnectTimeoutSec)*time.Second)
	defer cancel()
	stream, err := m.channel.Open(connectCtx, s.ID, s)
	if err != nil {
		s.fail(ReasonConnectError)
		slog.Error("recognizer handshake failed", "error", err, "session_id", s.ID)
		return nil, fmt.Errorf("connect to recognizer: %w", err)
	}
	s.start(stream, time.Duration(m.cfg.MaxSessionDurationMin)*time.Minute)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.repo != nil {
		if err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
			SessionID: s.ID,
			AnswerID:  answerID,
			Question:  question,
			StartedAt: s.StartedAt,
		}); err != nil {
			slog.Error("failed to record session start", "error", err, "session_id", s.ID)
		}
	}
	return s, nil
}

// Submit routes a chunk to its session.
func (m *Manager) Submit(sessionID string, c Chunk) error {
	s := m.get(sessionID)
	if s == nil {
		return ErrNoActiveSession
	}
	return s.Submit(c)
}

// Cancel aborts a session immediately. The session stays registered so a
// later End call can still consolidate the partial fragments.
func (m *Manager) Cancel(sessionID string) error {
	s := m.get(sessionID)
	if s == nil {
		return ErrNoActiveSession
	}
	slog.Info("cancelling session", "session_id", sessionID)
	s.Cancel()
	return nil
}

// End drives the session to a terminal state and always produces a
// consolidated answer, even from an empty or partial fragment set.
// Evaluation and recording are best-effort enrichment.
func (m *Manager) End(ctx context.Context, sessionID string) (*Outcome, error) {
	s := m.get(sessionID)
	if s == nil {
		return nil, ErrNoActiveSession
	}
	s.EndInput()
	if err := s.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for session to finish: %w", err)
	}

	fragments := s.Fragments()
	answer := m.consolidator.Consolidate(ctx, fragments)

	var evaluation *evaluate.Result
	if answer.Text == "" {
		slog.Info("skipping evaluation of empty answer", "session_id", s.ID)
	} else if m.evaluator != nil {
		evalCtx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.EvaluateTimeoutSec)*time.Second)
		res, err := m.evaluator.Evaluate(evalCtx, s.Question, answer.Text)
		cancel()
		if err != nil {
			slog.Warn("evaluation unavailable", "error", err, "session_id", s.ID)
		} else {
			evaluation = res
		}
	}

	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	go m.record(s, answer, evaluation)

	return &Outcome{
		SessionID:  s.ID,
		AnswerID:   s.AnswerID,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt(),
		State:      s.State(),
		EndReason:  s.EndReason(),
		Answer:     answer,
		Evaluation: evaluation,
	}, nil
}

func (m *Manager) get(sessionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// record persists the artifact bundle and fires the completion webhook.
// Neither failure reaches the caller.
func (m *Manager) record(s *Session, answer consolidate.Answer, evaluation *evaluate.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	var evaluationJSON []byte
	if evaluation != nil {
		b, err := json.Marshal(evaluation)
		if err != nil {
			slog.Error("failed to marshal evaluation", "error", err, "session_id", s.ID)
		} else {
			evaluationJSON = b
		}
	}

	if m.repo != nil {
		state := repository.SessionStateCompleted
		if s.State() == StateFailed {
			state = repository.SessionStateFailed
		}
		fragments := s.Fragments()
		inputs := make([]repository.FragmentInput, 0, len(fragments))
		for _, f := range fragments {
			inputs = append(inputs, repository.FragmentInput{
				Sequence:   f.Sequence,
				WindowID:   f.WindowID,
				Content:    f.Text,
				IsFinal:    f.IsFinal,
				ReceivedAt: f.ReceivedAt,
			})
		}
		err := m.repo.RecordArtifacts(ctx, repository.RecordArtifactsInput{
			SessionID:           s.ID,
			State:               state,
			EndReason:           string(s.EndReason()),
			EndedAt:             s.EndedAt(),
			Fragments:           inputs,
			Method:              string(answer.Method),
			ConsolidatedText:    answer.Text,
			SourceFragmentCount: answer.SourceFragmentCount,
			EvaluationJSON:      evaluationJSON,
		})
		if err != nil {
			slog.Error("failed to record session artifacts", "error", err, "session_id", s.ID)
		}
	}

	if m.webhook != nil {
		err := m.webhook.SendCompletion(ctx, webhook.CompletionPayload{
			SchemaVersion:       webhook.CompletionWebhookSchemaVersion,
			SessionID:           s.ID,
			AnswerID:            s.AnswerID,
			Question:            s.Question,
			State:               string(s.State()),
			EndReason:           string(s.EndReason()),
			StartAt:             s.StartedAt.Format(time.RFC3339),
			EndAt:               s.EndedAt().Format(time.RFC3339),
			Transcript:          answer.Text,
			ConsolidationMethod: string(answer.Method),
			FragmentCount:       len(s.Fragments()),
			Evaluation:          evaluation,
		})
		if err != nil {
			slog.Error("failed to send completion webhook", "error", err, "session_id", s.ID)
		}
	}
}
