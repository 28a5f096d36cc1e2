package interview

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
)

var (
	ErrSessionNotFound  = errors.New("interview session not found")
	ErrAllAnswered      = errors.New("all interview questions already answered")
	ErrOutOfOrderAnswer = errors.New("questions must be answered in the issued order")
)

// Question is one prompt posed to the candidate, answered within a fixed
// time window.
type Question struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	DurationSeconds int    `json:"durationSeconds"`
}

var presetQuestions = []string{
	"请介绍一下你在上一份工作中最具挑战性的项目，以及你在其中扮演的角色。",
	"面对紧迫的截止日期时，你是如何平衡质量与速度的？请举例说明。",
	"描述一次你与跨职能团队合作的经历，你们如何解决分歧？",
	"如果加入我们团队，你认为自己可以在哪些方面带来独特价值？",
	"请分享一次你主动学习新技能并成功应用到工作的案例。",
}

// DefaultQuestions returns the preset behavioral question set.
func DefaultQuestions(durationSeconds int) []Question {
	questions := make([]Question, 0, len(presetQuestions))
	for i, text := range presetQuestions {
		questions = append(questions, Question{
			ID:              fmt.Sprintf("q%d", i+1),
			Text:            text,
			DurationSeconds: durationSeconds,
		})
	}
	return questions
}

// AnswerRecord is the finished artifact for one answered question.
type AnswerRecord struct {
	QuestionID             string
	QuestionText           string
	TranscriptionSessionID string
	Transcript             string
	ConsolidationMethod    string
	DurationSeconds        float64
	Evaluation             *evaluate.Result
	AnsweredAt             time.Time
}

// Session is one candidate's interview: an ordered question set and the
// answers recorded so far.
type Session struct {
	ID                string
	JobDescription    string
	Questions         []Question
	CurrentIndex      int
	CreatedAt         time.Time
	QuestionStartedAt time.Time
	Answers           map[string]AnswerRecord
}

// CurrentQuestion returns the question the candidate must answer next.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Store keeps the live interview sessions in memory. Interviews are
// short-lived; finished artifacts are persisted elsewhere.
type Store struct {
	questionDurationSec int

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore(questionDurationSec int) *Store {
	return &Store{
		questionDurationSec: questionDurationSec,
		sessions:            make(map[string]*Session),
	}
}

// Create starts a new interview with the preset question set.
func (st *Store) Create(jobDescription string) Session {
	now := time.Now()
	s := &Session{
		ID:                uuid.NewString(),
		JobDescription:    jobDescription,
		Questions:         DefaultQuestions(st.questionDurationSec),
		CreatedAt:         now,
		QuestionStartedAt: now,
		Answers:           make(map[string]AnswerRecord),
	}
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	return snapshot(s)
}

func (st *Store) Get(sessionID string) (Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return snapshot(s), nil
}

// ExpectQuestion validates that questionID is the next question in
// order and returns it.
func (st *Store) ExpectQuestion(sessionID, questionID string) (Question, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[sessionID]
	if !ok {
		return Question{}, ErrSessionNotFound
	}
	current, ok := s.CurrentQuestion()
	if !ok {
		return Question{}, ErrAllAnswered
	}
	if current.ID != questionID {
		return Question{}, fmt.Errorf("%w: expected %s, got %s", ErrOutOfOrderAnswer, current.ID, questionID)
	}
	return current, nil
}

// RecordAnswer stores the finished answer for the current question and
// advances to the next one. Returns the next question, if any.
func (st *Store) RecordAnswer(sessionID string, record AnswerRecord) (*Question, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	current, hasCurrent := s.CurrentQuestion()
	if !hasCurrent {
		return nil, ErrAllAnswered
	}
	if current.ID != record.QuestionID {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrOutOfOrderAnswer, current.ID, record.QuestionID)
	}

	record.QuestionText = current.Text
	if record.AnsweredAt.IsZero() {
		record.AnsweredAt = time.Now()
	}
	if record.DurationSeconds <= 0 {
		record.DurationSeconds = record.AnsweredAt.Sub(s.QuestionStartedAt).Seconds()
	}
	s.Answers[current.ID] = record
	s.CurrentIndex++
	s.QuestionStartedAt = time.Now()

	if next, ok := s.CurrentQuestion(); ok {
		return &next, nil
	}
	return nil, nil
}

func snapshot(s *Session) Session {
	out := *s
	out.Questions = append([]Question(nil), s.Questions...)
	out.Answers = make(map[string]AnswerRecord, len(s.Answers))
	for k, v := range s.Answers {
		out.Answers[k] = v
	}
	return out
}
