package services

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MediaStore writes answer recordings to the local media directory
type MediaStore struct {
	dir   string
	mutex sync.Mutex
	now   func() time.Time
}

func NewMediaStore(dir string) *MediaStore {
	return &MediaStore{dir: dir, now: time.Now}
}

// SaveAnswerAudio stores the recording as session_<sid>_question_<qid>_<unixmillis>.wav and
// returns its path
func (m *MediaStore) SaveAnswerAudio(sessionID, questionID string, audio []byte) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	name := fmt.Sprintf("session_%s_question_%s_%d.wav", sessionID, questionID, m.now().UnixMilli())
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, audio, 0644); err != nil {
		slog.Error("Failed to write answer audio", "path", path, "error", err)
		return "", fmt.Errorf("failed to write answer audio: %w", err)
	}

	slog.Info("Answer audio saved", "path", path, "size", len(audio))
	return path, nil
}
