package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leep66666/smart-job-assistant-backend/internal/evaluate"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"
	"github.com/leep66666/smart-job-assistant-backend/internal/session"
)

const (
	headerChunkSequence = "X-Chunk-Sequence"
	headerLastChunk     = "X-Last-Chunk"

	maxChunkBytes = 1 << 20
)

// Server is the caller-facing HTTP surface: interview lifecycle plus the
// streaming transcription endpoints that feed it.
type Server struct {
	store   *interview.Store
	manager *session.Manager
}

func NewServer(store *interview.Store, manager *session.Manager) *Server {
	return &Server{store: store, manager: manager}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/interview/sessions", s.handleCreateInterview)
		r.Post("/interview/sessions/{sessionID}/answers/{questionID}/stream", s.handleOpenAnswerStream)
		r.Get("/interview/sessions/{sessionID}/report", s.handleReport)

		r.Post("/transcription/{sessionID}/chunks", s.handleSubmitChunk)
		r.Post("/transcription/{sessionID}/end", s.handleEndSession)
		r.Delete("/transcription/{sessionID}", s.handleCancelSession)
	})
	return r
}

type createInterviewRequest struct {
	JobDescription string `json:"jobDescription"`
}

type createInterviewResponse struct {
	Success   bool                 `json:"success"`
	SessionID string               `json:"sessionId"`
	Questions []interview.Question `json:"questions"`
}

func (s *Server) handleCreateInterview(w http.ResponseWriter, r *http.Request) {
	var req createInterviewRequest
	if r.Body != nil {
		// an empty body means no job description
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	created := s.store.Create(req.JobDescription)
	slog.Info("interview created", "interview_id", created.ID, "questions", len(created.Questions))
	writeJSON(w, http.StatusCreated, createInterviewResponse{
		Success:   true,
		SessionID: created.ID,
		Questions: created.Questions,
	})
}

type openStreamResponse struct {
	Success                bool   `json:"success"`
	TranscriptionSessionID string `json:"transcriptionSessionId"`
	Question               string `json:"question"`
	DurationSeconds        int    `json:"durationSeconds"`
}

func (s *Server) handleOpenAnswerStream(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "sessionID")
	questionID := chi.URLParam(r, "questionID")

	question, err := s.store.ExpectQuestion(interviewID, questionID)
	if err != nil {
		writeInterviewError(w, err)
		return
	}

	opened, err := s.manager.Open(r.Context(), answerID(interviewID, questionID), question.Text)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not reach the transcription service; try again")
		return
	}
	writeJSON(w, http.StatusCreated, openStreamResponse{
		Success:                true,
		TranscriptionSessionID: opened.ID,
		Question:               question.Text,
		DurationSeconds:        question.DurationSeconds,
	})
}

func (s *Server) handleSubmitChunk(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	seq, err := strconv.ParseInt(r.Header.Get(headerChunkSequence), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, headerChunkSequence+" header must be an integer")
		return
	}
	last := r.Header.Get(headerLastChunk) == "true"

	data, err := io.ReadAll(io.LimitReader(r.Body, maxChunkBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read chunk body")
		return
	}

	err = s.manager.Submit(sessionID, session.Chunk{Sequence: seq, Data: data, Last: last})
	switch {
	case errors.Is(err, session.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no active transcription session")
	case errors.Is(err, session.ErrOutOfOrderChunk):
		writeError(w, http.StatusConflict, "chunk sequence must be strictly increasing")
	case errors.Is(err, session.ErrSessionNotStreaming):
		writeError(w, http.StatusConflict, "session is not accepting audio")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to submit chunk")
	default:
		writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
	}
}

type answerPayload struct {
	Text                string `json:"text"`
	Method              string `json:"method"`
	SourceFragmentCount int    `json:"sourceFragmentCount"`
}

type endSessionResponse struct {
	Success      bool                `json:"success"`
	State        string              `json:"state"`
	EndReason    string              `json:"endReason"`
	Answer       answerPayload       `json:"answer"`
	Evaluation   *evaluate.Result    `json:"evaluation"`
	NextQuestion *interview.Question `json:"nextQuestion"`
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	outcome, err := s.manager.End(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			writeError(w, http.StatusNotFound, "no active transcription session")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to finish session")
		return
	}

	next := s.recordInterviewAnswer(outcome)

	writeJSON(w, http.StatusOK, endSessionResponse{
		Success:   true,
		State:     string(outcome.State),
		EndReason: string(outcome.EndReason),
		Answer: answerPayload{
			Text:                outcome.Answer.Text,
			Method:              string(outcome.Answer.Method),
			SourceFragmentCount: outcome.Answer.SourceFragmentCount,
		},
		Evaluation:   outcome.Evaluation,
		NextQuestion: next,
	})
}

// recordInterviewAnswer folds a finished transcription back into the
// interview it belongs to. A session opened outside an interview flow
// has no linkage and is skipped.
func (s *Server) recordInterviewAnswer(outcome *session.Outcome) *interview.Question {
	interviewID, questionID, ok := splitAnswerID(outcome.AnswerID)
	if !ok {
		return nil
	}
	next, err := s.store.RecordAnswer(interviewID, interview.AnswerRecord{
		QuestionID:             questionID,
		TranscriptionSessionID: outcome.SessionID,
		Transcript:             outcome.Answer.Text,
		ConsolidationMethod:    string(outcome.Answer.Method),
		DurationSeconds:        outcome.EndedAt.Sub(outcome.StartedAt).Seconds(),
		Evaluation:             outcome.Evaluation,
		AnsweredAt:             outcome.EndedAt,
	})
	if err != nil {
		slog.Warn("could not record interview answer", "error", err, "interview_id", interviewID, "question_id", questionID)
		return nil
	}
	return next
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if err := s.manager.Cancel(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "no active transcription session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type reportResponse struct {
	Success bool `json:"success"`
	interview.Report
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	interviewID := chi.URLParam(r, "sessionID")
	current, err := s.store.Get(interviewID)
	if err != nil {
		writeInterviewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reportResponse{
		Success: true,
		Report:  interview.BuildReport(current, time.Now()),
	})
}

func answerID(interviewID, questionID string) string {
	return interviewID + "/" + questionID
}

func splitAnswerID(id string) (interviewID, questionID string, ok bool) {
	interviewID, questionID, ok = strings.Cut(id, "/")
	return interviewID, questionID, ok && interviewID != "" && questionID != ""
}

func writeInterviewError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, interview.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "interview session not found")
	case errors.Is(err, interview.ErrOutOfOrderAnswer):
		writeError(w, http.StatusConflict, "questions must be answered in order")
	case errors.Is(err, interview.ErrAllAnswered):
		writeError(w, http.StatusConflict, "all questions already answered")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": false, "error": message})
}
