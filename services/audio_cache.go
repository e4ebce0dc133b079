package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// AudioCache keeps generated question audio on disk, keyed by text and voice
type AudioCache struct {
	cacheDir string
	mutex    sync.RWMutex
}

// NewAudioCache creates a new audio cache with the specified directory
func NewAudioCache(cacheDir string) *AudioCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		slog.Error("Failed to create cache directory", "dir", cacheDir, "error", err)
	}

	return &AudioCache{
		cacheDir: cacheDir,
	}
}

func (ac *AudioCache) generateCacheKey(text, voiceID string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", text, voiceID)))
	return hex.EncodeToString(hash[:])
}

func (ac *AudioCache) getCachePath(key string) string {
	return filepath.Join(ac.cacheDir, key+".mp3")
}

// Get retrieves cached audio data if it exists
func (ac *AudioCache) Get(ctx context.Context, text, voiceID string) ([]byte, bool) {
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	cachePath := ac.getCachePath(ac.generateCacheKey(text, voiceID))
	data, err := os.ReadFile(cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to read cached audio", "path", cachePath, "error", err)
		}
		return nil, false
	}

	slog.Debug("Audio cache hit", "voice_id", voiceID)
	return data, true
}

// Set stores audio data in the cache
func (ac *AudioCache) Set(ctx context.Context, text, voiceID string, audioData []byte) error {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	if err := os.MkdirAll(ac.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	cachePath := ac.getCachePath(ac.generateCacheKey(text, voiceID))
	if err := os.WriteFile(cachePath, audioData, 0644); err != nil {
		slog.Error("Failed to write audio to cache", "path", cachePath, "error", err)
		return fmt.Errorf("failed to write cached audio: %w", err)
	}

	slog.Info("Cached question audio", "voice_id", voiceID, "size", len(audioData))
	return nil
}

// GetOrGenerate gets cached audio or generates new audio and caches it
func (ac *AudioCache) GetOrGenerate(ctx context.Context, text, voiceID string, generator func() (io.ReadCloser, error)) ([]byte, error) {
	if cachedData, found := ac.Get(ctx, text, voiceID); found {
		return cachedData, nil
	}

	audioReader, err := generator()
	if err != nil {
		return nil, fmt.Errorf("failed to generate audio: %w", err)
	}
	defer audioReader.Close()

	audioData, err := io.ReadAll(audioReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if err := ac.Set(ctx, text, voiceID, audioData); err != nil {
		slog.Warn("Failed to cache audio", "error", err)
	}

	return audioData, nil
}
