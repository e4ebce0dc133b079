package services

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

//go:embed seed/questions.yaml
var defaultQuestionBank []byte

type questionBank struct {
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Text             string `yaml:"text"`
	Category         string `yaml:"category"`
	Subcategory      string `yaml:"subcategory"`
	Difficulty       string `yaml:"difficulty"`
	ExpectedKeywords string `yaml:"expected_keywords"`
	IdealDuration    int    `yaml:"ideal_duration"`
	Tips             string `yaml:"tips"`
	SampleAnswer     string `yaml:"sample_answer"`
	Active           *bool  `yaml:"active"`
}

func (q seedQuestion) toModel() models.Question {
	active := true
	if q.Active != nil {
		active = *q.Active
	}
	return models.Question{
		Text:             q.Text,
		Category:         q.Category,
		Subcategory:      q.Subcategory,
		Difficulty:       models.ParseDifficulty(q.Difficulty),
		ExpectedKeywords: q.ExpectedKeywords,
		IdealDuration:    q.IdealDuration,
		Tips:             q.Tips,
		SampleAnswer:     q.SampleAnswer,
		IsActive:         active,
	}
}

// ParseQuestionBank reads a YAML question bank
func ParseQuestionBank(data []byte) ([]models.Question, error) {
	var bank questionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("failed to parse question bank: %w", err)
	}

	questions := make([]models.Question, 0, len(bank.Questions))
	for i, q := range bank.Questions {
		if q.Text == "" || q.Category == "" {
			return nil, fmt.Errorf("question %d: text and category are required", i)
		}
		questions = append(questions, q.toModel())
	}
	return questions, nil
}

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	store     repository.Store
	users     repository.UserStore
	questions []byte
}

// NewDatabaseSeeder creates a new database seeder. users may be nil when there is no user table.
func NewDatabaseSeeder(store repository.Store, users repository.UserStore) *DatabaseSeeder {
	return &DatabaseSeeder{store: store, users: users, questions: defaultQuestionBank}
}

// SeedDatabase seeds the database with initial data (idempotent)
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	if s.users != nil {
		hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		users := []models.User{
			{Email: "test@example.com", Password: string(hashedPassword), FullName: "Test User", Role: "user"},
			{Email: "demo@example.com", Password: string(hashedPassword), FullName: "Demo User", Role: "user"},
		}
		for _, user := range users {
			if err := s.seedUser(ctx, user); err != nil {
				slog.Error("Failed to seed user", "email", user.Email, "error", err)
			}
		}
	}

	seeded, err := s.seedQuestions(ctx)
	if err != nil {
		return err
	}
	if seeded > 0 {
		slog.Info("Database seeding completed successfully", "questions", seeded)
	}
	return nil
}

// seedQuestions loads the bank only into an empty question table
func (s *DatabaseSeeder) seedQuestions(ctx context.Context) (int, error) {
	count, err := s.store.CountQuestions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	if count > 0 {
		slog.Info("Question bank already seeded, skipping", "count", count)
		return 0, nil
	}

	questions, err := ParseQuestionBank(s.questions)
	if err != nil {
		return 0, err
	}

	seeded := 0
	for i := range questions {
		if err := s.store.CreateQuestion(ctx, &questions[i]); err != nil {
			slog.Error("Failed to seed question", "category", questions[i].Category, "error", err)
			continue
		}
		seeded++
	}
	return seeded, nil
}

// seedUser seeds a single user (idempotent)
func (s *DatabaseSeeder) seedUser(ctx context.Context, user models.User) error {
	existingUser, err := s.users.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", user.Email, err)
	}

	if existingUser != nil {
		slog.Info("User already exists, skipping", "email", user.Email)
		return nil
	}

	if err := s.users.CreateUser(ctx, &user); err != nil {
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}

	slog.Info("Created user", "email", user.Email)
	return nil
}
