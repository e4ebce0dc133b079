package repository

import (
	"context"
	"errors"
	"time"

	"github.com/krshsl/mockprep/backend/models"
)

var (
	// ErrNotFound is returned when a session, answer, analysis or question does not exist
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a second analysis is written for the same answer
	ErrDuplicate = errors.New("record already exists")
)

// Store is the persistence boundary of the interview pipeline. Records are plain values keyed
// by id and foreign-key fields; nothing is lazily loaded.
type Store interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	ListSessionsByUser(ctx context.Context, userID string) ([]models.Session, error)
	ListSessionsStartedBefore(ctx context.Context, status models.SessionStatus, before time.Time) ([]models.Session, error)

	CreateAnswer(ctx context.Context, answer *models.Answer) error
	ListAnswersBySession(ctx context.Context, sessionID string) ([]models.Answer, error)
	CountAnswersBySession(ctx context.Context, sessionID string) (int64, error)

	CreateAnalysis(ctx context.Context, analysis *models.Analysis) error
	GetAnalysisByAnswer(ctx context.Context, answerID string) (*models.Analysis, error)
	ListAnalysesBySession(ctx context.Context, sessionID string) ([]models.Analysis, error)

	CreateQuestion(ctx context.Context, question *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	RandomQuestions(ctx context.Context, category string, count int) ([]models.Question, error)
	CountQuestions(ctx context.Context) (int64, error)
}

// UserStore backs cookie authentication. Lookups return nil, nil when nothing matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error
	GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error)
	DeleteAllUserTokens(ctx context.Context, userID string) error
}

var (
	_ Store     = (*GORMRepository)(nil)
	_ UserStore = (*GORMRepository)(nil)
	_ Store     = (*MemoryStore)(nil)
)
