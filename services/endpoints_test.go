package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
	"github.com/krshsl/mockprep/backend/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOrigin = "http://localhost:5173"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiFixture struct {
	handler   http.Handler
	store     *repository.MemoryStore
	questions []*models.Question
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	config := &Config{
		Transcription: TranscriptionConfig{Provider: "none", Timeout: time.Second},
		Media:         MediaConfig{Dir: t.TempDir()},
		Sessions:      SessionConfig{AbandonAfter: time.Hour, SweepSchedule: "@every 1h"},
		WebSocket:     WebSocketConfig{AllowedOrigins: testOrigin},
	}

	store := repository.NewMemoryStore()
	fixture := &apiFixture{store: store}
	for _, q := range []models.Question{
		{Text: "Describe a project you are proud of.", Category: "Behavioral", ExpectedKeywords: "project,success", IsActive: true},
		{Text: "Tell me about a conflict.", Category: "Behavioral", ExpectedKeywords: "listen,resolve", IsActive: true},
		{Text: "Explain a hash map.", Category: "Technical", ExpectedKeywords: "hash,bucket", IsActive: true},
	} {
		q := q
		require.NoError(t, store.CreateQuestion(context.Background(), &q))
		fixture.questions = append(fixture.questions, &q)
	}

	server := NewServer(config)
	server.SetDatabase(store, nil, nil)
	require.NoError(t, server.InitializeServices(context.Background()))
	t.Cleanup(server.Close)

	fixture.handler = server.SetupRoutes()
	return fixture
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	return f.serve(t, req)
}

func (f *apiFixture) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (f *apiFixture) startSession(t *testing.T, userID, sessionType, category string) StartSessionResponse {
	t.Helper()

	rec, env := f.do(t, http.MethodPost, "/api/v1/interviews", userID, StartSessionRequest{SessionType: sessionType, Category: category})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var started StartSessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &started))
	return started
}

func multipartRequest(t *testing.T, path, userID string, fields map[string]string, audio []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if audio != nil {
		part, err := writer.CreateFormFile("audio", "answer.wav")
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(UserIDHeader, userID)
	return req
}

func TestHealthAndMetrics(t *testing.T) {
	f := newAPIFixture(t)

	rec, _ := f.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "not configured", health.Database)

	f.startSession(t, "user-1", "Quick", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mockprep_sessions_total{event="started"} 1`)
	assert.Contains(t, rec.Body.String(), "mockprep_http_requests_total")
}

func TestInterviewRoutes_RequireIdentity(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/interviews", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)
}

func TestStartSessionEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	started := f.startSession(t, "user-1", "FullMock", "Behavioral")
	assert.Equal(t, 15, started.Session.TotalQuestions)
	assert.Equal(t, models.SessionStatusInProgress, started.Session.Status)
	require.Len(t, started.Questions, 2)
	for _, q := range started.Questions {
		assert.Equal(t, "Behavioral", q.Category)
	}

	rec, env := f.do(t, http.MethodPost, "/api/v1/interviews", "user-1", StartSessionRequest{SessionType: "Marathon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "Marathon")
}

func TestSubmitAnswerEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	started := f.startSession(t, "user-1", "Quick", "")
	path := "/api/v1/interviews/" + started.Session.ID

	rec, env := f.do(t, http.MethodPost, path+"/answers", "user-1", SubmitAnswerRequest{
		QuestionID: f.questions[0].ID,
		Transcript: "um I think the project was basically successful",
		Duration:   30,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report scoring.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.InDelta(t, 8.535, report.OverallScore, 1e-9)

	rec, env = f.do(t, http.MethodGet, path, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var session models.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, 1, session.QuestionsAnswered)
	assert.InDelta(t, 8.535, session.OverallScore, 1e-9)

	rec, env = f.do(t, http.MethodGet, path+"/answers", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details []AnswerDetail
	require.NoError(t, json.Unmarshal(env.Data, &details))
	require.Len(t, details, 1)
	require.NotNil(t, details[0].Analysis)
	assert.Equal(t, report.Strengths, details[0].Analysis.Strengths)

	rec, _ = f.do(t, http.MethodPost, path+"/answers", "user-1", SubmitAnswerRequest{QuestionID: "missing", Transcript: "hello", Duration: 10})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionsAreScopedToOwner(t *testing.T) {
	f := newAPIFixture(t)
	started := f.startSession(t, "user-1", "Quick", "")
	path := "/api/v1/interviews/" + started.Session.ID

	rec, _ := f.do(t, http.MethodGet, path, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = f.do(t, http.MethodPost, path+"/complete", "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := f.do(t, http.MethodGet, "/api/v1/interviews", "user-2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions []models.Session
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	assert.Empty(t, sessions)
}

func TestSubmitAudioAnswerEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	started := f.startSession(t, "user-1", "Quick", "")
	path := "/api/v1/interviews/" + started.Session.ID + "/answers/audio"
	questionID := f.questions[0].ID

	rec, env := f.serve(t, multipartRequest(t, path, "user-1", map[string]string{"question_id": questionID}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Message, "either audio or transcript")

	rec, env = f.serve(t, multipartRequest(t, path, "user-1", map[string]string{"question_id": questionID}, []byte("RIFFdata")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report scoring.Report
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, FallbackTranscript, report.Transcript)

	rec, env = f.serve(t, multipartRequest(t, path, "user-1", map[string]string{"question_id": questionID, "transcript": "the project was a success"}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "the project was a success", report.Transcript)
}

func TestCompleteSessionAndDashboardEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	started := f.startSession(t, "user-1", "Quick", "")
	path := "/api/v1/interviews/" + started.Session.ID

	rec, _ := f.do(t, http.MethodPost, path+"/answers", "user-1", SubmitAnswerRequest{
		QuestionID: f.questions[0].ID,
		Transcript: "um I think the project was basically successful",
		Duration:   30,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodPost, path+"/complete", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var session models.Session
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.NotNil(t, session.EndTime)

	rec, env = f.do(t, http.MethodPost, path+"/reanalyze", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reanalyzed ReanalyzeResponse
	require.NoError(t, json.Unmarshal(env.Data, &reanalyzed))
	assert.Zero(t, reanalyzed.Analysed)

	rec, env = f.do(t, http.MethodGet, "/api/v1/dashboard", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats DashboardStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, 1, stats.TotalInterviews)
	assert.Equal(t, 1, stats.CompletedInterviews)
	assert.Equal(t, 1, stats.TotalQuestionsAnswered)
	assert.InDelta(t, 8.535, stats.AverageScore, 1e-9)
}

func TestQuestionEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.do(t, http.MethodGet, "/api/v1/questions/random?category=Technical&count=3", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var questions []models.Question
	require.NoError(t, json.Unmarshal(env.Data, &questions))
	require.Len(t, questions, 1)
	assert.Equal(t, "Technical", questions[0].Category)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/questions/random?count=abc", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/questions/random?count=0", "user-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/api/v1/questions/"+f.questions[2].ID, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var question models.Question
	require.NoError(t, json.Unmarshal(env.Data, &question))
	assert.Equal(t, f.questions[2].Text, question.Text)

	rec, _ = f.do(t, http.MethodGet, "/api/v1/questions/missing", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// speech is not configured
	rec, _ = f.do(t, http.MethodGet, "/api/v1/questions/"+f.questions[2].ID+"/audio", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTranscribeEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec, env := f.serve(t, multipartRequest(t, "/api/v1/speech/transcribe", "user-1", nil, []byte("RIFFdata")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out TranscriptionResponse
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.True(t, out.Fallback)
	assert.Equal(t, FallbackTranscript, out.Transcript)

	rec, _ = f.serve(t, multipartRequest(t, "/api/v1/speech/transcribe", "user-1", nil, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressFeed(t *testing.T) {
	f := newAPIFixture(t)
	started := f.startSession(t, "user-1", "Quick", "")

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	header := http.Header{}
	header.Set("Origin", testOrigin)
	header.Set(UserIDHeader, "user-1")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/interviews/" + started.Session.ID + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var control map[string]string
	require.NoError(t, conn.ReadJSON(&control))
	assert.Equal(t, "subscribed", control["type"])

	rec, _ := f.do(t, http.MethodPost, "/api/v1/interviews/"+started.Session.ID+"/answers", "user-1", SubmitAnswerRequest{
		QuestionID: f.questions[0].ID,
		Transcript: "um I think the project was basically successful",
		Duration:   30,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var update SessionUpdate
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, "session.updated", update.Type)
	assert.Equal(t, 1, update.QuestionsAnswered)
	assert.InDelta(t, 8.535, update.OverallScore, 1e-9)

	// foreign origins are refused
	header.Set("Origin", "http://evil.example")
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
}
