package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/krshsl/mockprep/backend/models"
	ws "github.com/krshsl/mockprep/backend/websocket"
)

// maxAudioUploadSize bounds a single recorded answer
const maxAudioUploadSize = 25 << 20

type InterviewEndpoints struct {
	interviews *InterviewService
	hub        *ws.Hub
	upgrader   websocket.Upgrader
}

type StartSessionRequest struct {
	SessionType string `json:"session_type"`
	Category    string `json:"category,omitempty"`
}

type StartSessionResponse struct {
	Session   *models.Session   `json:"session"`
	Questions []models.Question `json:"questions"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Transcript string `json:"transcript"`
	Duration   int    `json:"duration"`
}

type ReanalyzeResponse struct {
	Analysed int             `json:"analysed"`
	Session  *models.Session `json:"session"`
}

// NewInterviewEndpoints wires the session routes; hub may be nil to disable the progress feed
func NewInterviewEndpoints(interviews *InterviewService, hub *ws.Hub, allowedOrigins string) *InterviewEndpoints {
	return &InterviewEndpoints{
		interviews: interviews,
		hub:        hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return CheckOrigin(r, allowedOrigins)
			},
		},
	}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", e.StartSessionHandler)
		r.Get("/", e.ListSessionsHandler)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", e.GetSessionHandler)
			r.Get("/answers", e.GetSessionAnswersHandler)
			r.Post("/answers", e.SubmitAnswerHandler)
			r.Post("/answers/audio", e.SubmitAudioAnswerHandler)
			r.Post("/complete", e.CompleteSessionHandler)
			r.Post("/reanalyze", e.ReanalyzeHandler)
			if e.hub != nil {
				r.Get("/ws", e.ProgressFeedHandler)
			}
		})
	})
	r.Get("/dashboard", e.DashboardHandler)
}

func requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, "Authentication required", nil)
		return nil, false
	}
	return user, true
}

// ownedSession loads the path session; another user's session is reported as missing
func (e *InterviewEndpoints) ownedSession(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return nil, false
	}

	sessionID := chi.URLParam(r, "id")
	session, err := e.interviews.GetSession(r.Context(), sessionID)
	if err == nil && session.UserID != user.ID {
		err = fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return session, true
}

func (e *InterviewEndpoints) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	session, questions, err := e.interviews.StartSessionWithQuestions(r.Context(), user.ID, req.SessionType, req.Category)
	if err != nil {
		slog.Error("Failed to start session", "error", err, "user_id", user.ID)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, "Interview session started", StartSessionResponse{Session: session, Questions: questions})
}

func (e *InterviewEndpoints) ListSessionsHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	sessions, err := e.interviews.ListSessions(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Sessions retrieved", sessions)
}

func (e *InterviewEndpoints) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, "Session found", session)
}

func (e *InterviewEndpoints) GetSessionAnswersHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}

	answers, err := e.interviews.GetSessionAnswers(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Answers retrieved", answers)
}

func (e *InterviewEndpoints) SubmitAnswerHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	report, err := e.interviews.SubmitAnswer(r.Context(), session.ID, req.QuestionID, req.Transcript, req.Duration)
	if err != nil {
		slog.Error("Failed to submit answer", "error", err, "session_id", session.ID, "question_id", req.QuestionID)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Answer submitted and analyzed", report)
}

func (e *InterviewEndpoints) SubmitAudioAnswerHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUploadSize)
	if err := r.ParseMultipartForm(maxAudioUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid multipart form", nil)
		return
	}

	audio, err := readAudioPart(r, "audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "Failed to read audio file", nil)
		return
	}
	var transcript *string
	if values, ok := r.MultipartForm.Value["transcript"]; ok && len(values) > 0 {
		transcript = &values[0]
	}

	questionID := r.FormValue("question_id")
	report, err := e.interviews.SubmitAnswerWithAudio(r.Context(), session.ID, questionID, audio, transcript)
	if err != nil {
		slog.Error("Failed to submit audio answer", "error", err, "session_id", session.ID, "question_id", questionID)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Answer submitted and analyzed", report)
}

func (e *InterviewEndpoints) CompleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}

	completed, err := e.interviews.CompleteSession(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Interview completed", completed)
}

func (e *InterviewEndpoints) ReanalyzeHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}

	analysed, updated, err := e.interviews.ReanalyzePending(r.Context(), session.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Pending answers analyzed", ReanalyzeResponse{Analysed: analysed, Session: updated})
}

func (e *InterviewEndpoints) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := e.interviews.Dashboard(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Dashboard stats retrieved", stats)
}

// ProgressFeedHandler streams session updates until the client disconnects
func (e *InterviewEndpoints) ProgressFeedHandler(w http.ResponseWriter, r *http.Request) {
	session, ok := e.ownedSession(w, r)
	if !ok {
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err, "session_id", session.ID)
		return
	}

	slog.Info("WebSocket connection established", "user_id", session.UserID, "session_id", session.ID)
	client := e.hub.RegisterClient(conn, session.UserID, session.ID)
	go client.WritePump()
	client.ReadPump()
}

// readAudioPart returns nil when the form has no such file
func readAudioPart(r *http.Request, field string) (*AudioUpload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &AudioUpload{Data: data, MIMEType: header.Header.Get("Content-Type")}, nil
}
