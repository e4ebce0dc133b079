package repository

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/krshsl/mockprep/backend/models"
)

// MemoryStore keeps every record in process. It backs the server when no DATABASE_URL is set
// and the service tests.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]models.Session
	answers   map[string]models.Answer
	analyses  map[string]models.Analysis // keyed by answer id
	questions map[string]models.Question
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]models.Session),
		answers:   make(map[string]models.Answer),
		analyses:  make(map[string]models.Analysis),
		questions: make(map[string]models.Question),
	}
}

func (m *MemoryStore) CreateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	session.CreatedAt, session.UpdatedAt = now, now
	m.sessions[session.ID] = *session
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (m *MemoryStore) UpdateSession(ctx context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}
	stored.EndTime = session.EndTime
	stored.QuestionsAnswered = session.QuestionsAnswered
	stored.OverallScore = session.OverallScore
	stored.Status = session.Status
	stored.UpdatedAt = time.Now()
	m.sessions[session.ID] = stored
	return nil
}

func (m *MemoryStore) ListSessionsByUser(ctx context.Context, userID string) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := []models.Session{}
	for _, s := range m.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.After(sessions[j].StartTime)
	})
	return sessions, nil
}

func (m *MemoryStore) ListSessionsStartedBefore(ctx context.Context, status models.SessionStatus, before time.Time) ([]models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := []models.Session{}
	for _, s := range m.sessions {
		if s.Status == status && s.StartTime.Before(before) {
			sessions = append(sessions, s)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})
	return sessions, nil
}

func (m *MemoryStore) CreateAnswer(ctx context.Context, answer *models.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if answer.ID == "" {
		answer.ID = uuid.New().String()
	}
	answer.CreatedAt = time.Now()
	m.answers[answer.ID] = *answer
	return nil
}

func (m *MemoryStore) ListAnswersBySession(ctx context.Context, sessionID string) ([]models.Answer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.answersOf(sessionID), nil
}

func (m *MemoryStore) CountAnswersBySession(ctx context.Context, sessionID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.answersOf(sessionID))), nil
}

// answersOf must be called with mu held
func (m *MemoryStore) answersOf(sessionID string) []models.Answer {
	answers := []models.Answer{}
	for _, a := range m.answers {
		if a.SessionID == sessionID {
			answers = append(answers, a)
		}
	}
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].AnsweredAt.Before(answers[j].AnsweredAt)
	})
	return answers
}

func (m *MemoryStore) CreateAnalysis(ctx context.Context, analysis *models.Analysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.answers[analysis.AnswerID]; !ok {
		return ErrNotFound
	}
	if _, exists := m.analyses[analysis.AnswerID]; exists {
		return ErrDuplicate
	}
	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	m.analyses[analysis.AnswerID] = *analysis
	return nil
}

func (m *MemoryStore) GetAnalysisByAnswer(ctx context.Context, answerID string) (*models.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	analysis, ok := m.analyses[answerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &analysis, nil
}

func (m *MemoryStore) ListAnalysesBySession(ctx context.Context, sessionID string) ([]models.Analysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	analyses := []models.Analysis{}
	for _, a := range m.answersOf(sessionID) {
		if analysis, ok := m.analyses[a.ID]; ok {
			analyses = append(analyses, analysis)
		}
	}
	return analyses, nil
}

func (m *MemoryStore) CreateQuestion(ctx context.Context, question *models.Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if question.ID == "" {
		question.ID = uuid.New().String()
	}
	if question.IdealDuration <= 0 {
		question.IdealDuration = models.DefaultIdealDuration
	}
	now := time.Now()
	question.CreatedAt, question.UpdatedAt = now, now
	m.questions[question.ID] = *question
	return nil
}

func (m *MemoryStore) GetQuestion(ctx context.Context, id string) (*models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	question, ok := m.questions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &question, nil
}

func (m *MemoryStore) RandomQuestions(ctx context.Context, category string, count int) ([]models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool := []models.Question{}
	for _, q := range m.questions {
		if q.IsActive && (category == "" || q.Category == category) {
			pool = append(pool, q)
		}
	}
	rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if count < 0 {
		count = 0
	}
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool, nil
}

func (m *MemoryStore) CountQuestions(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.questions)), nil
}
