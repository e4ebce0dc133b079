package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// feedbackSeparator joins strengths, weaknesses and tips into a single column
const feedbackSeparator = "|"

// Answer is one response to one question within a session. It is never updated after creation;
// answering the same question again creates a new row.
type Answer struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID  string    `gorm:"type:uuid;not null;index" json:"session_id"`
	QuestionID string    `gorm:"type:uuid;not null;index" json:"question_id"`
	UserID     string    `gorm:"size:64;not null;index" json:"user_id"`
	VideoPath  *string   `gorm:"size:500" json:"video_path,omitempty"`
	AudioPath  *string   `gorm:"size:500" json:"audio_path,omitempty"`
	Transcript string    `gorm:"type:text" json:"transcript"`
	Duration   int       `gorm:"not null;default:0" json:"duration"` // seconds
	AnsweredAt time.Time `gorm:"not null" json:"answered_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Answer) TableName() string {
	return "interview_answers"
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// Analysis stores the scoring output for exactly one answer
type Analysis struct {
	ID                     string    `gorm:"type:uuid;primaryKey" json:"id"`
	AnswerID               string    `gorm:"type:uuid;not null;uniqueIndex" json:"answer_id"`
	ContentScore           float64   `gorm:"not null" json:"content_score"`
	CommunicationScore     float64   `gorm:"not null" json:"communication_score"`
	ConfidenceScore        float64   `gorm:"not null" json:"confidence_score"`
	OverallScore           float64   `gorm:"not null" json:"overall_score"`
	WordsPerMinute         int       `gorm:"not null" json:"words_per_minute"`
	FillerWordCount        int       `gorm:"not null" json:"filler_word_count"`
	PauseCount             int       `gorm:"not null;default:0" json:"pause_count"`
	KeywordMatchPercentage float64   `gorm:"not null" json:"keyword_match_percentage"`
	Strengths              string    `gorm:"type:text" json:"-"`
	Weaknesses             string    `gorm:"type:text" json:"-"`
	ImprovementTips        string    `gorm:"type:text" json:"-"`
	AnalyzedAt             time.Time `gorm:"not null" json:"analyzed_at"`

	// Relationships
	Answer *Answer `gorm:"foreignKey:AnswerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Analysis) TableName() string {
	return "answer_analyses"
}

func (a *Analysis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// JoinFeedback encodes a feedback list for storage
func JoinFeedback(items []string) string {
	return strings.Join(items, feedbackSeparator)
}

// SplitFeedback decodes a stored feedback list
func SplitFeedback(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, feedbackSeparator)
}

func (a *Analysis) StrengthList() []string { return SplitFeedback(a.Strengths) }
func (a *Analysis) WeaknessList() []string { return SplitFeedback(a.Weaknesses) }
func (a *Analysis) TipList() []string { return SplitFeedback(a.ImprovementTips) }
