package services

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/scoring"
)

// ProgressPublisher delivers session updates to whoever watches the session
type ProgressPublisher interface {
	Publish(sessionID string, payload []byte)
}

// SessionUpdate is pushed after every change of a session's progress, score or status
type SessionUpdate struct {
	Type              string               `json:"type"` // "session.updated"
	SessionID         string               `json:"session_id"`
	Status            models.SessionStatus `json:"status"`
	QuestionsAnswered int                  `json:"questions_answered"`
	TotalQuestions    int                  `json:"total_questions"`
	OverallScore      float64              `json:"overall_score"`
	LastAnswer        *AnswerScore         `json:"last_answer,omitempty"`
}

// AnswerScore summarises the newest scored answer
type AnswerScore struct {
	AnswerID     string  `json:"answer_id"`
	QuestionID   string  `json:"question_id"`
	OverallScore float64 `json:"overall_score"`
}

func publishSessionUpdate(publisher ProgressPublisher, session *models.Session, last *AnswerScore) {
	if publisher == nil || session == nil {
		return
	}
	payload, err := json.Marshal(SessionUpdate{
		Type:              "session.updated",
		SessionID:         session.ID,
		Status:            session.Status,
		QuestionsAnswered: session.QuestionsAnswered,
		TotalQuestions:    session.TotalQuestions,
		OverallScore:      session.OverallScore,
		LastAnswer:        last,
	})
	if err != nil {
		slog.Error("Failed to marshal session update", "error", err, "session_id", session.ID)
		return
	}
	publisher.Publish(session.ID, payload)
}

// reportFromAnalysis rebuilds the scoring report of a stored analysis with the transcript it scored
func reportFromAnalysis(analysis *models.Analysis, transcript string) scoring.Report {
	if strings.TrimSpace(transcript) == "" {
		transcript = scoring.NoAnswerPlaceholder
	}
	return scoring.Report{
		ContentScore:           analysis.ContentScore,
		CommunicationScore:     analysis.CommunicationScore,
		ConfidenceScore:        analysis.ConfidenceScore,
		OverallScore:           analysis.OverallScore,
		WordsPerMinute:         analysis.WordsPerMinute,
		FillerWordCount:        analysis.FillerWordCount,
		KeywordMatchPercentage: analysis.KeywordMatchPercentage,
		Strengths:              analysis.StrengthList(),
		Weaknesses:             analysis.WeaknessList(),
		Tips:                   analysis.TipList(),
		Transcript:             transcript,
	}
}
