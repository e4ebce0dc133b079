package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// FallbackTranscript stands in for speech when no provider is configured or the provider fails
const FallbackTranscript = "I am a passionate software developer with experience in Java, Spring Boot, and full stack development. " +
	"I have worked on several projects including web and enterprise applications. " +
	"I am excited about this opportunity and believe I would be a great fit for your team."

// Transcriber turns recorded speech into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// TranscriptProvider runs the configured Transcriber under a timeout and recovers every
// failure with FallbackTranscript, so callers never see ErrTranscriptionUnavailable.
type TranscriptProvider struct {
	transcriber Transcriber
	timeout     time.Duration
	metrics     *Metrics
}

func NewTranscriptProvider(transcriber Transcriber, timeout time.Duration, metrics *Metrics) *TranscriptProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TranscriptProvider{
		transcriber: transcriber,
		timeout:     timeout,
		metrics:     metrics,
	}
}

// Transcribe returns the provider's text, or FallbackTranscript with fallback=true
func (p *TranscriptProvider) Transcribe(ctx context.Context, audio []byte, mimeType string) (text string, fallback bool) {
	text, err := p.transcribe(ctx, audio, mimeType)
	if err != nil {
		slog.Warn("Transcription unavailable, using fallback transcript", "error", err, "audio_size", len(audio))
		p.metrics.observeTranscription("fallback")
		return FallbackTranscript, true
	}
	p.metrics.observeTranscription("ok")
	return text, false
}

func (p *TranscriptProvider) transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if p.transcriber == nil {
		return "", fmt.Errorf("%w: no provider configured", ErrTranscriptionUnavailable)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrTranscriptionUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	text, err := p.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		if errors.Is(err, ErrTranscriptionUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: provider returned no text", ErrTranscriptionUnavailable)
	}
	return text, nil
}

// NewTranscriberFromConfig builds the provider named by TRANSCRIPTION_PROVIDER. A provider without
// credentials yields nil, which makes every transcription fall back.
func NewTranscriberFromConfig(ctx context.Context, cfg TranscriptionConfig) Transcriber {
	switch strings.ToLower(cfg.Provider) {
	case "assemblyai":
		if cfg.AssemblyAIKey == "" {
			slog.Warn("AssemblyAI selected but ASSEMBLYAI_API_KEY is empty, using fallback transcripts")
			return nil
		}
		slog.Info("AssemblyAI transcriber initialized")
		return NewAssemblyAITranscriber(cfg.AssemblyAIKey, cfg.PollingInterval)
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			slog.Warn("Gemini selected but GEMINI_API_KEY is empty, using fallback transcripts")
			return nil
		}
		t, err := NewGeminiTranscriber(ctx, cfg.GeminiAPIKey)
		if err != nil {
			slog.Error("Failed to create Gemini transcriber", "error", err)
			return nil
		}
		slog.Info("Gemini transcriber initialized")
		return t
	default:
		slog.Warn("No transcription provider configured, using fallback transcripts", "provider", cfg.Provider)
		return nil
	}
}
