package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionType selects how many questions a practice session targets
type SessionType string

const (
	SessionTypeQuick       SessionType = "Quick"
	SessionTypeFullMock    SessionType = "FullMock"
	SessionTypeCustom      SessionType = "Custom"
	SessionTypeResumeBased SessionType = "ResumeBased"
)

// ParseSessionType accepts only the four known session types
func ParseSessionType(s string) (SessionType, error) {
	switch t := SessionType(s); t {
	case SessionTypeQuick, SessionTypeFullMock, SessionTypeCustom, SessionTypeResumeBased:
		return t, nil
	default:
		return "", fmt.Errorf("unsupported session type %q", s)
	}
}

// TotalQuestions returns the question target for the session type
func (t SessionType) TotalQuestions() int {
	switch t {
	case SessionTypeQuick:
		return 5
	case SessionTypeFullMock:
		return 15
	case SessionTypeCustom, SessionTypeResumeBased:
		return 10
	default:
		return 10
	}
}

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "InProgress"
	SessionStatusCompleted  SessionStatus = "Completed"
	SessionStatusAbandoned  SessionStatus = "Abandoned"
)

// IsTerminal reports whether no further transition is possible
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusAbandoned:
		return true
	case SessionStatusInProgress:
		return false
	default:
		return false
	}
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle forward-only.
// Completed -> Completed is allowed so retried completion requests only re-stamp the end time.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionStatusInProgress:
		return next == SessionStatusCompleted || next == SessionStatusAbandoned
	case SessionStatusCompleted:
		return next == SessionStatusCompleted
	case SessionStatusAbandoned:
		return false
	default:
		return false
	}
}

// Session represents one practice attempt consisting of a target number of questions
type Session struct {
	ID                string        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            string        `gorm:"size:64;not null;index" json:"user_id"`
	SessionType       SessionType   `gorm:"size:20;not null;check:session_type IN ('Quick', 'FullMock', 'Custom', 'ResumeBased')" json:"session_type"`
	StartTime         time.Time     `gorm:"not null;index" json:"start_time"`
	EndTime           *time.Time    `json:"end_time,omitempty"`
	TotalQuestions    int           `gorm:"not null" json:"total_questions"`
	QuestionsAnswered int           `gorm:"not null;default:0" json:"questions_answered"`
	OverallScore      float64       `gorm:"not null;default:0" json:"overall_score"`
	Status            SessionStatus `gorm:"size:20;not null;index;check:status IN ('InProgress', 'Completed', 'Abandoned')" json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// TableName returns the table name for the Session model
func (Session) TableName() string {
	return "interview_sessions"
}

// BeforeCreate assigns an ID when the caller did not
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
