package services

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type SpeechEndpoints struct {
	interviews *InterviewService
}

type TranscriptionResponse struct {
	Transcript string `json:"transcript"`
	Fallback   bool   `json:"fallback"`
}

func NewSpeechEndpoints(interviews *InterviewService) *SpeechEndpoints {
	return &SpeechEndpoints{interviews: interviews}
}

func (e *SpeechEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/speech/transcribe", e.TranscribeHandler)
}

func (e *SpeechEndpoints) TranscribeHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioUploadSize)
	if err := r.ParseMultipartForm(maxAudioUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, "Invalid multipart form", nil)
		return
	}

	audio, err := readAudioPart(r, "audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, "Failed to read audio file", nil)
		return
	}
	if audio == nil {
		writeError(w, fmt.Errorf("%w: audio file is required", ErrInvalidArgument))
		return
	}

	text, fallback, err := e.interviews.TranscribeOnly(r.Context(), *audio)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("Audio transcribed", "size", len(audio.Data), "fallback", fallback)
	writeJSON(w, http.StatusOK, "Transcription successful", TranscriptionResponse{Transcript: text, Fallback: fallback})
}
