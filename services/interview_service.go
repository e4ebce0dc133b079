package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
	"github.com/krshsl/mockprep/backend/scoring"
)

// estimatedWordsPerMinute converts a transcript to a duration when only audio or text arrives
const estimatedWordsPerMinute = 150

// InterviewService runs the session lifecycle and the answer scoring pipeline
type InterviewService struct {
	store       repository.Store
	questions   *QuestionService
	transcripts *TranscriptProvider
	media       *MediaStore
	locker      SessionLocker
	publisher   ProgressPublisher
	metrics     *Metrics
	now         func() time.Time
}

// InterviewDeps are the collaborators of InterviewService. Publisher and Metrics may be nil.
type InterviewDeps struct {
	Store       repository.Store
	Questions   *QuestionService
	Transcripts *TranscriptProvider
	Media       *MediaStore
	Locker      SessionLocker
	Publisher   ProgressPublisher
	Metrics     *Metrics
}

func NewInterviewService(deps InterviewDeps) *InterviewService {
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalSessionLocker()
	}
	return &InterviewService{
		store:       deps.Store,
		questions:   deps.Questions,
		transcripts: deps.Transcripts,
		media:       deps.Media,
		locker:      locker,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		now:         time.Now,
	}
}

// AudioUpload is a recorded answer as received from the client
type AudioUpload struct {
	Data     []byte
	MIMEType string
}

// StartSession opens an InProgress session sized by its type
func (s *InterviewService) StartSession(ctx context.Context, userID, sessionType string) (*models.Session, error) {
	kind, err := parseStart(userID, sessionType)
	if err != nil {
		return nil, err
	}
	return s.createSession(ctx, userID, kind)
}

// StartSessionWithQuestions draws the session's questions before the session is stored, so a
// failed draw leaves nothing behind
func (s *InterviewService) StartSessionWithQuestions(ctx context.Context, userID, sessionType, category string) (*models.Session, []models.Question, error) {
	kind, err := parseStart(userID, sessionType)
	if err != nil {
		return nil, nil, err
	}
	questions, err := s.questions.SelectRandom(ctx, category, kind.TotalQuestions())
	if err != nil {
		return nil, nil, err
	}
	session, err := s.createSession(ctx, userID, kind)
	if err != nil {
		return nil, nil, err
	}
	return session, questions, nil
}

func parseStart(userID, sessionType string) (models.SessionType, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	kind, err := models.ParseSessionType(sessionType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return kind, nil
}

func (s *InterviewService) createSession(ctx context.Context, userID string, kind models.SessionType) (*models.Session, error) {
	session := &models.Session{
		UserID:            userID,
		SessionType:       kind,
		StartTime:         s.now(),
		TotalQuestions:    kind.TotalQuestions(),
		QuestionsAnswered: 0,
		OverallScore:      0,
		Status:            models.SessionStatusInProgress,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrPersistence, err)
	}

	s.metrics.observeSession("started")
	slog.Info("Interview session created", "session_id", session.ID, "user_id", userID, "type", kind)
	return session, nil
}

func (s *InterviewService) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeError(err, "session", sessionID)
	}
	return session, nil
}

// ListSessions returns the user's sessions, newest first
func (s *InterviewService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := s.store.ListSessionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list sessions: %v", ErrPersistence, err)
	}
	return sessions, nil
}

// SubmitAnswer records a typed answer, scores it and refreshes the session aggregates
func (s *InterviewService) SubmitAnswer(ctx context.Context, sessionID, questionID, transcript string, durationSeconds int) (*scoring.Report, error) {
	return s.submit(ctx, submission{
		sessionID:  sessionID,
		questionID: questionID,
		transcript: transcript,
		duration:   durationSeconds,
		source:     "text",
	})
}

// SubmitAnswerWithAudio accepts a recording, a transcript or both; the recording wins. The duration
// is estimated from the transcript at 150 words per minute.
func (s *InterviewService) SubmitAnswerWithAudio(ctx context.Context, sessionID, questionID string, audio *AudioUpload, transcript *string) (*scoring.Report, error) {
	hasAudio := audio != nil && len(audio.Data) > 0
	hasTranscript := transcript != nil && *transcript != ""
	if !hasAudio && !hasTranscript {
		return nil, fmt.Errorf("%w: either audio or transcript must be provided", ErrInvalidArgument)
	}

	// validate references before touching disk or the transcription provider
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := s.questions.Lookup(ctx, questionID); err != nil {
		return nil, err
	}

	sub := submission{sessionID: sessionID, questionID: questionID}
	if hasAudio {
		path, err := s.media.SaveAnswerAudio(sessionID, questionID, audio.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		sub.audioPath = &path
		sub.transcript, _ = s.transcripts.Transcribe(ctx, audio.Data, audio.MIMEType)
		sub.source = "audio"
	} else {
		sub.transcript = *transcript
		sub.source = "transcript"
	}
	sub.duration = EstimateDuration(sub.transcript)

	return s.submit(ctx, sub)
}

// TranscribeOnly converts a recording to text without recording an answer
func (s *InterviewService) TranscribeOnly(ctx context.Context, audio AudioUpload) (string, bool, error) {
	if len(audio.Data) == 0 {
		return "", false, fmt.Errorf("%w: audio file is empty", ErrInvalidArgument)
	}
	text, fallback := s.transcripts.Transcribe(ctx, audio.Data, audio.MIMEType)
	return text, fallback, nil
}

// EstimateDuration converts a transcript to seconds at the nominal speaking rate
func EstimateDuration(transcript string) int {
	words := scoring.WordCount(transcript)
	return int(math.Round(float64(words) / estimatedWordsPerMinute * 60))
}

type submission struct {
	sessionID  string
	questionID string
	transcript string
	duration   int
	audioPath  *string
	source     string
}

func (s *InterviewService) submit(ctx context.Context, sub submission) (*scoring.Report, error) {
	session, err := s.GetSession(ctx, sub.sessionID)
	if err != nil {
		return nil, err
	}
	question, err := s.questions.Lookup(ctx, sub.questionID)
	if err != nil {
		return nil, err
	}

	answer := &models.Answer{
		SessionID:  session.ID,
		QuestionID: question.ID,
		UserID:     session.UserID,
		AudioPath:  sub.audioPath,
		Transcript: sub.transcript,
		Duration:   sub.duration,
		AnsweredAt: s.now(),
	}
	if err := s.store.CreateAnswer(ctx, answer); err != nil {
		return nil, fmt.Errorf("%w: failed to record answer for session %s: %v", ErrPersistence, session.ID, err)
	}

	report := scoring.Analyze(scoring.Input{
		Transcript:       answer.Transcript,
		DurationSeconds:  answer.Duration,
		ExpectedKeywords: question.ExpectedKeywords,
	})

	analysisErr := s.storeAnalysis(ctx, answer.ID, report)

	// progress counts the answer even when its analysis is missing
	updated, err := s.recompute(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	if analysisErr != nil {
		return nil, analysisErr
	}

	s.metrics.observeAnswer(sub.source, report.OverallScore)
	publishSessionUpdate(s.publisher, updated, &AnswerScore{
		AnswerID:     answer.ID,
		QuestionID:   question.ID,
		OverallScore: report.OverallScore,
	})
	slog.Info("Answer scored", "session_id", session.ID, "answer_id", answer.ID, "overall_score", report.OverallScore, "source", sub.source)
	return &report, nil
}

func (s *InterviewService) storeAnalysis(ctx context.Context, answerID string, report scoring.Report) error {
	analysis := &models.Analysis{
		AnswerID:               answerID,
		ContentScore:           report.ContentScore,
		CommunicationScore:     report.CommunicationScore,
		ConfidenceScore:        report.ConfidenceScore,
		OverallScore:           report.OverallScore,
		WordsPerMinute:         report.WordsPerMinute,
		FillerWordCount:        report.FillerWordCount,
		PauseCount:             0,
		KeywordMatchPercentage: report.KeywordMatchPercentage,
		Strengths:              models.JoinFeedback(report.Strengths),
		Weaknesses:             models.JoinFeedback(report.Weaknesses),
		ImprovementTips:        models.JoinFeedback(report.Tips),
		AnalyzedAt:             s.now(),
	}
	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil
		}
		slog.Error("Failed to store analysis, answer left pending", "error", err, "answer_id", answerID)
		return fmt.Errorf("%w: failed to store analysis for answer %s: %v", ErrPersistence, answerID, err)
	}
	return nil
}

// CompleteSession marks the session Completed and stamps its end time. Repeating it on a completed
// session only re-stamps the end time; an abandoned session cannot be completed.
func (s *InterviewService) CompleteSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.transition(ctx, sessionID, models.SessionStatusCompleted)
	if err != nil {
		return nil, err
	}
	s.metrics.observeSession("completed")
	slog.Info("Interview session completed", "session_id", session.ID, "overall_score", session.OverallScore)
	return session, nil
}

// AbandonSession marks an InProgress session Abandoned. Only the sweeper calls it.
func (s *InterviewService) AbandonSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := s.transition(ctx, sessionID, models.SessionStatusAbandoned)
	if err != nil {
		return nil, err
	}
	s.metrics.observeSession("abandoned")
	slog.Info("Interview session abandoned", "session_id", session.ID)
	return session, nil
}

func (s *InterviewService) transition(ctx context.Context, sessionID string, next models.SessionStatus) (*models.Session, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: session %s is %s and cannot become %s", ErrInvalidArgument, sessionID, session.Status, next)
	}

	end := s.now()
	session.Status = next
	session.EndTime = &end
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, storeError(err, "session", sessionID)
	}

	publishSessionUpdate(s.publisher, session, nil)
	return session, nil
}

// AnswerDetail pairs an answer with its analysis, which is nil while pending
type AnswerDetail struct {
	Answer   models.Answer   `json:"answer"`
	Analysis *scoring.Report `json:"analysis,omitempty"`
}

// GetSessionAnswers lists the session's answers in submission order with their analyses
func (s *InterviewService) GetSessionAnswers(ctx context.Context, sessionID string) ([]AnswerDetail, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	answers, err := s.store.ListAnswersBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list answers: %v", ErrPersistence, err)
	}

	details := make([]AnswerDetail, 0, len(answers))
	for _, answer := range answers {
		detail := AnswerDetail{Answer: answer}
		analysis, err := s.store.GetAnalysisByAnswer(ctx, answer.ID)
		switch {
		case err == nil:
			report := reportFromAnalysis(analysis, answer.Transcript)
			detail.Analysis = &report
		case errors.Is(err, repository.ErrNotFound):
		default:
			return nil, fmt.Errorf("%w: failed to load analysis: %v", ErrPersistence, err)
		}
		details = append(details, detail)
	}
	return details, nil
}

// DashboardStats summarises a user's practice history
type DashboardStats struct {
	TotalInterviews        int              `json:"total_interviews"`
	CompletedInterviews    int              `json:"completed_interviews"`
	AverageScore           float64          `json:"average_score"`
	TotalQuestionsAnswered int              `json:"total_questions_answered"`
	RecentSessions         []models.Session `json:"recent_sessions"`
}

const recentSessionsLimit = 5

// Dashboard averages only completed sessions
func (s *InterviewService) Dashboard(ctx context.Context, userID string) (*DashboardStats, error) {
	sessions, err := s.ListSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{TotalInterviews: len(sessions), RecentSessions: []models.Session{}}
	var scoreSum float64
	for _, session := range sessions {
		stats.TotalQuestionsAnswered += session.QuestionsAnswered
		if session.Status == models.SessionStatusCompleted {
			stats.CompletedInterviews++
			scoreSum += session.OverallScore
		}
	}
	if stats.CompletedInterviews > 0 {
		stats.AverageScore = scoreSum / float64(stats.CompletedInterviews)
	}
	if len(sessions) > recentSessionsLimit {
		sessions = sessions[:recentSessionsLimit]
	}
	stats.RecentSessions = append(stats.RecentSessions, sessions...)
	return stats, nil
}
