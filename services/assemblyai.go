package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const assemblyAIBaseURL = "https://api.assemblyai.com/v2"

// AssemblyAITranscriber uploads audio, requests a transcript and polls until it completes
type AssemblyAITranscriber struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
}

type assemblyAIUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyAITranscriptRequest struct {
	AudioURL     string `json:"audio_url"`
	LanguageCode string `json:"language_code"`
	Punctuate    bool   `json:"punctuate"`
}

type assemblyAITranscript struct {
	ID     string `json:"id"`
	Status string `json:"status"` // queued, processing, completed, error
	Text   string `json:"text"`
	Error  string `json:"error"`
}

func NewAssemblyAITranscriber(apiKey string, pollInterval time.Duration) *AssemblyAITranscriber {
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &AssemblyAITranscriber{
		apiKey:       apiKey,
		baseURL:      assemblyAIBaseURL,
		client:       &http.Client{Timeout: 60 * time.Second},
		pollInterval: pollInterval,
	}
}

func (a *AssemblyAITranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	uploadURL, err := a.upload(ctx, audio)
	if err != nil {
		return "", err
	}

	transcriptID, err := a.requestTranscript(ctx, uploadURL)
	if err != nil {
		return "", err
	}

	return a.poll(ctx, transcriptID)
}

func (a *AssemblyAITranscriber) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload", bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var out assemblyAIUploadResponse
	if err := a.do(req, &out); err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("assemblyai upload returned no url")
	}
	return out.UploadURL, nil
}

func (a *AssemblyAITranscriber) requestTranscript(ctx context.Context, audioURL string) (string, error) {
	body, err := json.Marshal(assemblyAITranscriptRequest{
		AudioURL:     audioURL,
		LanguageCode: "en_us",
		Punctuate:    true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create transcript request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out assemblyAITranscript
	if err := a.do(req, &out); err != nil {
		return "", fmt.Errorf("failed to request transcript: %w", err)
	}
	slog.Info("AssemblyAI transcript requested", "transcript_id", out.ID)
	return out.ID, nil
}

func (a *AssemblyAITranscriber) poll(ctx context.Context, transcriptID string) (string, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("transcript %s not ready: %w", transcriptID, ctx.Err())
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/transcript/"+transcriptID, nil)
		if err != nil {
			return "", fmt.Errorf("failed to create poll request: %w", err)
		}

		var out assemblyAITranscript
		if err := a.do(req, &out); err != nil {
			return "", fmt.Errorf("failed to poll transcript: %w", err)
		}

		switch out.Status {
		case "completed":
			slog.Info("AssemblyAI transcript completed", "transcript_id", transcriptID, "length", len(out.Text))
			return out.Text, nil
		case "error":
			return "", fmt.Errorf("assemblyai transcription failed: %s", out.Error)
		}
	}
}

func (a *AssemblyAITranscriber) do(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("assemblyai API error: %d - %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
