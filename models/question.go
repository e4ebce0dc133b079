package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// DefaultIdealDuration is the ideal answer length in seconds when a question does not set one
const DefaultIdealDuration = 180

// ParseDifficulty is lenient: "easy", "EASY" and "Easy" all parse, anything else falls back to Medium
func ParseDifficulty(s string) Difficulty {
	s = strings.TrimSpace(s)
	if s == "" {
		return DifficultyMedium
	}
	normalized := strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	switch d := Difficulty(normalized); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d
	default:
		return DifficultyMedium
	}
}

// Question is an entry of the question bank
type Question struct {
	ID               string     `gorm:"type:uuid;primaryKey" json:"id"`
	Text             string     `gorm:"type:text;not null" json:"question_text"`
	Category         string     `gorm:"size:50;not null;index" json:"category"`
	Subcategory      string     `gorm:"size:50" json:"subcategory,omitempty"`
	Difficulty       Difficulty `gorm:"size:10;not null;default:'Medium'" json:"difficulty"`
	ExpectedKeywords string     `gorm:"type:text" json:"expected_keywords,omitempty"` // comma-separated
	IdealDuration    int        `gorm:"not null;default:180" json:"ideal_duration"`   // seconds
	Tips             string     `gorm:"type:text" json:"tips,omitempty"`
	SampleAnswer     string     `gorm:"type:text" json:"sample_answer,omitempty"`
	IsActive         bool       `gorm:"not null;index" json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.IdealDuration <= 0 {
		q.IdealDuration = DefaultIdealDuration
	}
	return nil
}
