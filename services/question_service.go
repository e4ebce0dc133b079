package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
)

// MaxRandomQuestions caps a single random selection request
const MaxRandomQuestions = 50

// QuestionService is the question source of the pipeline
type QuestionService struct {
	store repository.Store
}

func NewQuestionService(store repository.Store) *QuestionService {
	return &QuestionService{store: store}
}

// Lookup returns the question or ErrNotFound
func (s *QuestionService) Lookup(ctx context.Context, id string) (*models.Question, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: question id is required", ErrInvalidArgument)
	}
	question, err := s.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, storeError(err, "question", id)
	}
	return question, nil
}

// SelectRandom draws up to count distinct active questions, uniformly, optionally from one category.
// Fewer are returned when the pool is smaller.
func (s *QuestionService) SelectRandom(ctx context.Context, category string, count int) ([]models.Question, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count must be positive", ErrInvalidArgument)
	}
	if count > MaxRandomQuestions {
		count = MaxRandomQuestions
	}
	questions, err := s.store.RandomQuestions(ctx, strings.TrimSpace(category), count)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to select questions: %v", ErrPersistence, err)
	}
	return questions, nil
}
