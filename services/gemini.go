package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"
)

const (
	ModelName = "gemini-2.5-flash"

	transcriptionPrompt = "Transcribe this interview answer to text. Provide only the transcript, no additional commentary."
)

// GeminiTranscriber sends the recorded answer inline to Gemini and returns its transcript
type GeminiTranscriber struct {
	genaiClient *genai.Client
	model       string
}

func NewGeminiTranscriber(ctx context.Context, apiKey string) (*GeminiTranscriber, error) {
	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiTranscriber{
		genaiClient: genaiClient,
		model:       ModelName,
	}, nil
}

func (g *GeminiTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	if g.genaiClient == nil {
		return "", fmt.Errorf("genai client not initialized")
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(audio)
	}
	slog.Info("Transcribing audio with Gemini", "size", len(audio), "mime_type", mimeType)

	parts := []*genai.Part{
		genai.NewPartFromText(transcriptionPrompt),
		genai.NewPartFromBytes(audio, mimeType),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	result, err := g.genaiClient.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate transcript: %w", err)
	}

	transcript := result.Text()
	slog.Info("Audio transcribed successfully", "transcript_length", len(transcript))
	return transcript, nil
}
