package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/krshsl/mockprep/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB opens an isolated in-memory SQLite database per test
func setupTestDB(t *testing.T) *GORMRepository {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(OpenOptions{
		Driver: "sqlite",
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)

	repo := NewGORMRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

// stores runs the same behaviour against both implementations
func stores(t *testing.T) map[string]Store {
	return map[string]Store{
		"gorm":   setupTestDB(t),
		"memory": NewMemoryStore(),
	}
}

func newSession(userID string, started time.Time) *models.Session {
	return &models.Session{
		UserID:         userID,
		SessionType:    models.SessionTypeQuick,
		StartTime:      started,
		TotalQuestions: models.SessionTypeQuick.TotalQuestions(),
		Status:         models.SessionStatusInProgress,
	}
}

func TestStore_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			session := newSession("user-1", time.Now())
			require.NoError(t, store.CreateSession(ctx, session))
			require.NotEmpty(t, session.ID)

			got, err := store.GetSession(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, models.SessionStatusInProgress, got.Status)
			assert.Equal(t, 5, got.TotalQuestions)
			assert.Nil(t, got.EndTime)

			end := time.Now()
			got.Status = models.SessionStatusCompleted
			got.EndTime = &end
			got.QuestionsAnswered = 2
			got.OverallScore = 6.25
			require.NoError(t, store.UpdateSession(ctx, got))

			updated, err := store.GetSession(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, models.SessionStatusCompleted, updated.Status)
			assert.Equal(t, 2, updated.QuestionsAnswered)
			assert.InDelta(t, 6.25, updated.OverallScore, 1e-9)
			require.NotNil(t, updated.EndTime)
		})
	}
}

func TestStore_GetSessionNotFound(t *testing.T) {
	ctx := context.Background()
	ids := []string{"00000000-0000-0000-0000-000000000000", "not-a-uuid", ""}
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range ids {
				_, err := store.GetSession(ctx, id)
				assert.ErrorIs(t, err, ErrNotFound, "id %q", id)

				err = store.UpdateSession(ctx, &models.Session{ID: id})
				assert.ErrorIs(t, err, ErrNotFound, "id %q", id)

				_, err = store.GetQuestion(ctx, id)
				assert.ErrorIs(t, err, ErrNotFound, "id %q", id)
			}
		})
	}
}

func TestIsRecordID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"7f1c2a8e-4b7d-4a51-9f0e-2d3c4b5a6f70", true},
		{"abc", false},
		{"", false},
		{"7f1c2a8e-4b7d-4a51-9f0e-2d3c4b5a6f7", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRecordID(tt.id), tt.id)
	}
}

func TestStore_ListSessionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				require.NoError(t, store.CreateSession(ctx, newSession("user-2", base.Add(time.Duration(i)*time.Minute))))
			}
			require.NoError(t, store.CreateSession(ctx, newSession("someone-else", base)))

			sessions, err := store.ListSessionsByUser(ctx, "user-2")
			require.NoError(t, err)
			require.Len(t, sessions, 3)
			assert.True(t, sessions[0].StartTime.After(sessions[1].StartTime))
			assert.True(t, sessions[1].StartTime.After(sessions[2].StartTime))

			stale, err := store.ListSessionsStartedBefore(ctx, models.SessionStatusInProgress, base.Add(90*time.Second))
			require.NoError(t, err)
			assert.Len(t, stale, 3)
		})
	}
}

func TestStore_AnswersAndAnalyses(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			question := &models.Question{Text: "What is a deadlock?", Category: "Technical", Difficulty: models.DifficultyMedium, IsActive: true}
			require.NoError(t, store.CreateQuestion(ctx, question))
			assert.Equal(t, models.DefaultIdealDuration, question.IdealDuration)

			session := newSession("user-3", time.Now())
			require.NoError(t, store.CreateSession(ctx, session))

			first := &models.Answer{SessionID: session.ID, QuestionID: question.ID, UserID: "user-3", Transcript: "two threads wait", Duration: 40, AnsweredAt: time.Now()}
			second := &models.Answer{SessionID: session.ID, QuestionID: question.ID, UserID: "user-3", Transcript: "circular wait", Duration: 30, AnsweredAt: time.Now().Add(time.Second)}
			require.NoError(t, store.CreateAnswer(ctx, first))
			require.NoError(t, store.CreateAnswer(ctx, second))

			count, err := store.CountAnswersBySession(ctx, session.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), count)

			answers, err := store.ListAnswersBySession(ctx, session.ID)
			require.NoError(t, err)
			require.Len(t, answers, 2)
			assert.Equal(t, first.ID, answers[0].ID)

			analysis := &models.Analysis{AnswerID: first.ID, ContentScore: 5, CommunicationScore: 8, ConfidenceScore: 7.5, OverallScore: 6.675, AnalyzedAt: time.Now()}
			require.NoError(t, store.CreateAnalysis(ctx, analysis))

			err = store.CreateAnalysis(ctx, &models.Analysis{AnswerID: first.ID, AnalyzedAt: time.Now()})
			assert.ErrorIs(t, err, ErrDuplicate)

			got, err := store.GetAnalysisByAnswer(ctx, first.ID)
			require.NoError(t, err)
			assert.InDelta(t, 6.675, got.OverallScore, 1e-9)

			_, err = store.GetAnalysisByAnswer(ctx, second.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			analyses, err := store.ListAnalysesBySession(ctx, session.ID)
			require.NoError(t, err)
			require.Len(t, analyses, 1)
			assert.Equal(t, first.ID, analyses[0].AnswerID)
		})
	}
}

func TestStore_RandomQuestions(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 4; i++ {
				require.NoError(t, store.CreateQuestion(ctx, &models.Question{Text: fmt.Sprintf("behavioral %d", i), Category: "Behavioral", IsActive: true}))
			}
			require.NoError(t, store.CreateQuestion(ctx, &models.Question{Text: "retired", Category: "Behavioral", IsActive: false}))
			require.NoError(t, store.CreateQuestion(ctx, &models.Question{Text: "technical", Category: "Technical", IsActive: true}))

			total, err := store.CountQuestions(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(6), total)

			picked, err := store.RandomQuestions(ctx, "Behavioral", 10)
			require.NoError(t, err)
			assert.Len(t, picked, 4)
			for _, q := range picked {
				assert.True(t, q.IsActive)
				assert.Equal(t, "Behavioral", q.Category)
			}

			picked, err = store.RandomQuestions(ctx, "", 2)
			require.NoError(t, err)
			assert.Len(t, picked, 2)

			picked, err = store.RandomQuestions(ctx, "Technical", 0)
			require.NoError(t, err)
			assert.Empty(t, picked)

			_, err = store.GetQuestion(ctx, "00000000-0000-0000-0000-000000000000")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestGORMRepository_UserTokens(t *testing.T) {
	ctx := context.Background()
	repo := setupTestDB(t)

	user := &models.User{Email: "candidate@example.com", Password: "hash", Role: "user"}
	require.NoError(t, repo.CreateUser(ctx, user))
	require.NotEmpty(t, user.ID)

	missing, err := repo.GetUserByEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.CreateRefreshToken(ctx, &models.RefreshToken{UserID: user.ID, Token: "refresh-hash", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, repo.CreateRefreshToken(ctx, &models.RefreshToken{UserID: user.ID, Token: "expired-hash", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.CreatePermanentToken(ctx, &models.PermanentToken{UserID: user.ID, Token: "permanent-hash"}))

	refresh, err := repo.GetRefreshToken(ctx, "refresh-hash")
	require.NoError(t, err)
	require.NotNil(t, refresh)

	expired, err := repo.GetRefreshToken(ctx, "expired-hash")
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, repo.DeleteAllUserTokens(ctx, user.ID))

	refresh, err = repo.GetRefreshToken(ctx, "refresh-hash")
	require.NoError(t, err)
	assert.Nil(t, refresh)
	permanent, err := repo.GetPermanentToken(ctx, "permanent-hash")
	require.NoError(t, err)
	assert.Nil(t, permanent)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(OpenOptions{Driver: "mysql", URL: "root@/db"})
	assert.Error(t, err)
}
