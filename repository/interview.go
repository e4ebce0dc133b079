package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/mockprep/backend/models"
	"gorm.io/gorm"
)

// isRecordID reports whether id can name a row; uuid columns reject anything else at the driver
func isRecordID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Session operations
func (r *GORMRepository) CreateSession(ctx context.Context, session *models.Session) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		slog.Error("Failed to create interview session", "error", err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *GORMRepository) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if !isRecordID(id) {
		return nil, ErrNotFound
	}
	var session models.Session
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		slog.Error("Failed to get interview session", "error", err, "session_id", id)
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

// UpdateSession saves every column; callers load, mutate and save under the session lock
func (r *GORMRepository) UpdateSession(ctx context.Context, session *models.Session) error {
	if !isRecordID(session.ID) {
		return ErrNotFound
	}
	result := r.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", session.ID).Updates(map[string]interface{}{
		"end_time":           session.EndTime,
		"questions_answered": session.QuestionsAnswered,
		"overall_score":      session.OverallScore,
		"status":             session.Status,
	})
	if result.Error != nil {
		slog.Error("Failed to update interview session", "error", result.Error, "session_id", session.ID)
		return fmt.Errorf("failed to update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GORMRepository) ListSessionsByUser(ctx context.Context, userID string) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("start_time DESC").Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list interview sessions", "error", err, "user_id", userID)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (r *GORMRepository) ListSessionsStartedBefore(ctx context.Context, status models.SessionStatus, before time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time < ?", status, before).
		Order("start_time").
		Find(&sessions).Error
	if err != nil {
		slog.Error("Failed to list stale sessions", "error", err, "status", status)
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Answer operations
func (r *GORMRepository) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	if err := r.db.WithContext(ctx).Create(answer).Error; err != nil {
		slog.Error("Failed to create answer", "error", err, "session_id", answer.SessionID)
		return fmt.Errorf("failed to create answer: %w", err)
	}
	slog.Info("Answer created", "answer_id", answer.ID, "session_id", answer.SessionID, "question_id", answer.QuestionID)
	return nil
}

func (r *GORMRepository) ListAnswersBySession(ctx context.Context, sessionID string) ([]models.Answer, error) {
	var answers []models.Answer
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("answered_at").Find(&answers).Error
	if err != nil {
		slog.Error("Failed to list answers", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}

func (r *GORMRepository) CountAnswersBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Answer{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		slog.Error("Failed to count answers", "error", err, "session_id", sessionID)
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

// Analysis operations
func (r *GORMRepository) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Analysis{}).Where("answer_id = ?", analysis.AnswerID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicate
		}
		return tx.Create(analysis).Error
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		slog.Error("Failed to create analysis", "error", err, "answer_id", analysis.AnswerID)
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	slog.Info("Analysis created", "analysis_id", analysis.ID, "answer_id", analysis.AnswerID, "overall_score", analysis.OverallScore)
	return nil
}

func (r *GORMRepository) GetAnalysisByAnswer(ctx context.Context, answerID string) (*models.Analysis, error) {
	var analysis models.Analysis
	if err := r.db.WithContext(ctx).Where("answer_id = ?", answerID).First(&analysis).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		slog.Error("Failed to get analysis", "error", err, "answer_id", answerID)
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

func (r *GORMRepository) ListAnalysesBySession(ctx context.Context, sessionID string) ([]models.Analysis, error) {
	var analyses []models.Analysis
	err := r.db.WithContext(ctx).
		Joins("JOIN interview_answers ON interview_answers.id = answer_analyses.answer_id").
		Where("interview_answers.session_id = ?", sessionID).
		Find(&analyses).Error
	if err != nil {
		slog.Error("Failed to list analyses", "error", err, "session_id", sessionID)
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return analyses, nil
}

// Question operations
func (r *GORMRepository) CreateQuestion(ctx context.Context, question *models.Question) error {
	if err := r.db.WithContext(ctx).Create(question).Error; err != nil {
		slog.Error("Failed to create question", "error", err, "category", question.Category)
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

func (r *GORMRepository) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	if !isRecordID(id) {
		return nil, ErrNotFound
	}
	var question models.Question
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&question).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		slog.Error("Failed to get question", "error", err, "question_id", id)
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return &question, nil
}

// RandomQuestions picks up to count active questions, optionally restricted to one category
func (r *GORMRepository) RandomQuestions(ctx context.Context, category string, count int) ([]models.Question, error) {
	var questions []models.Question
	if count <= 0 {
		return questions, nil
	}
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	if err := query.Order("RANDOM()").Limit(count).Find(&questions).Error; err != nil {
		slog.Error("Failed to select random questions", "error", err, "category", category)
		return nil, fmt.Errorf("failed to select questions: %w", err)
	}
	return questions, nil
}

func (r *GORMRepository) CountQuestions(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Question{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}
