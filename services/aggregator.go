package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
	"github.com/krshsl/mockprep/backend/scoring"
)

// RecalculateSessionScore sets the session score to the mean overall score of its analysed
// answers, or 0 when none are analysed. Running it again without new answers changes nothing.
func (s *InterviewService) RecalculateSessionScore(ctx context.Context, sessionID string) (float64, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	score, err := s.meanScore(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	session.OverallScore = score
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return 0, storeError(err, "session", sessionID)
	}
	return score, nil
}

// UpdateSessionProgress sets questions answered to the number of stored answers
func (s *InterviewService) UpdateSessionProgress(ctx context.Context, sessionID string) (int, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	answered, err := s.answeredCount(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	session.QuestionsAnswered = answered
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return 0, storeError(err, "session", sessionID)
	}
	return answered, nil
}

// recompute refreshes progress and score in one locked step
func (s *InterviewService) recompute(ctx context.Context, sessionID string) (*models.Session, error) {
	unlock, err := s.locker.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	defer unlock()

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	answered, err := s.answeredCount(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	score, err := s.meanScore(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	session.QuestionsAnswered = answered
	session.OverallScore = score
	if err := s.store.UpdateSession(ctx, session); err != nil {
		return nil, storeError(err, "session", sessionID)
	}
	return session, nil
}

// ReanalyzePending scores every answer of the session that has no analysis yet, then refreshes
// the aggregates. It returns how many answers were analysed.
func (s *InterviewService) ReanalyzePending(ctx context.Context, sessionID string) (int, *models.Session, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return 0, nil, err
	}
	answers, err := s.store.ListAnswersBySession(ctx, sessionID)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to list answers: %v", ErrPersistence, err)
	}

	analysed := 0
	for _, answer := range answers {
		_, err := s.store.GetAnalysisByAnswer(ctx, answer.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return analysed, nil, fmt.Errorf("%w: failed to load analysis: %v", ErrPersistence, err)
		}

		question, err := s.questions.Lookup(ctx, answer.QuestionID)
		if err != nil {
			return analysed, nil, err
		}
		report := scoring.Analyze(scoring.Input{
			Transcript:       answer.Transcript,
			DurationSeconds:  answer.Duration,
			ExpectedKeywords: question.ExpectedKeywords,
		})
		if err := s.storeAnalysis(ctx, answer.ID, report); err != nil {
			return analysed, nil, err
		}
		analysed++
	}

	session, err := s.recompute(ctx, sessionID)
	if err != nil {
		return analysed, nil, err
	}
	if analysed > 0 {
		slog.Info("Pending answers analysed", "session_id", sessionID, "count", analysed)
		publishSessionUpdate(s.publisher, session, nil)
	}
	return analysed, session, nil
}

func (s *InterviewService) answeredCount(ctx context.Context, sessionID string) (int, error) {
	count, err := s.store.CountAnswersBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count answers: %v", ErrPersistence, err)
	}
	return int(count), nil
}

func (s *InterviewService) meanScore(ctx context.Context, sessionID string) (float64, error) {
	analyses, err := s.store.ListAnalysesBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to list analyses: %v", ErrPersistence, err)
	}
	if len(analyses) == 0 {
		return 0, nil
	}
	var sum float64
	for _, a := range analyses {
		sum += a.OverallScore
	}
	return sum / float64(len(analyses)), nil
}
