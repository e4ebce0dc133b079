package services

import (
	"context"
	"testing"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/krshsl/mockprep/backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuestionBank(t *testing.T) {
	data := []byte(`
questions:
  - text: Explain a deadlock.
    category: Technical
    difficulty: hard
    expected_keywords: lock, wait, cycle
  - text: Why this role?
    category: HR
    difficulty: whatever
    ideal_duration: 90
    active: false
`)
	questions, err := ParseQuestionBank(data)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	assert.Equal(t, models.DifficultyHard, questions[0].Difficulty)
	assert.Equal(t, "lock, wait, cycle", questions[0].ExpectedKeywords)
	assert.True(t, questions[0].IsActive)

	assert.Equal(t, models.DifficultyMedium, questions[1].Difficulty)
	assert.Equal(t, 90, questions[1].IdealDuration)
	assert.False(t, questions[1].IsActive)
}

func TestParseQuestionBank_Invalid(t *testing.T) {
	_, err := ParseQuestionBank([]byte("questions: ["))
	assert.Error(t, err)

	_, err = ParseQuestionBank([]byte("questions:\n  - category: HR\n"))
	assert.Error(t, err)
}

func TestDefaultQuestionBankParses(t *testing.T) {
	questions, err := ParseQuestionBank(defaultQuestionBank)
	require.NoError(t, err)
	assert.NotEmpty(t, questions)

	categories := map[string]bool{}
	for _, q := range questions {
		categories[q.Category] = true
		assert.NotEmpty(t, q.ExpectedKeywords, q.Text)
	}
	assert.Len(t, categories, 4)
}

func TestSeedDatabase_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	seeder := NewDatabaseSeeder(store, nil)

	require.NoError(t, seeder.SeedDatabase(ctx))
	first, err := store.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Positive(t, first)

	require.NoError(t, seeder.SeedDatabase(ctx))
	second, err := store.CountQuestions(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	picked, err := store.RandomQuestions(ctx, "SystemDesign", 50)
	require.NoError(t, err)
	assert.NotEmpty(t, picked)
	for _, q := range picked {
		assert.Equal(t, "SystemDesign", q.Category)
	}
}
