package services

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

const defaultRandomCount = 5

type QuestionEndpoints struct {
	questions *QuestionService
	audio     *QuestionAudioService
}

// NewQuestionEndpoints wires the question routes; audio may be nil when speech is not configured
func NewQuestionEndpoints(questions *QuestionService, audio *QuestionAudioService) *QuestionEndpoints {
	return &QuestionEndpoints{questions: questions, audio: audio}
}

func (e *QuestionEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/questions", func(r chi.Router) {
		r.Get("/random", e.RandomQuestionsHandler)
		r.Get("/{id}", e.GetQuestionHandler)
		if e.audio != nil {
			r.Get("/{id}/audio", e.QuestionAudioHandler)
		}
	})
}

func (e *QuestionEndpoints) RandomQuestionsHandler(w http.ResponseWriter, r *http.Request) {
	count := defaultRandomCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: count must be a number", ErrInvalidArgument))
			return
		}
		count = n
	}

	questions, err := e.questions.SelectRandom(r.Context(), r.URL.Query().Get("category"), count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Random questions retrieved", questions)
}

func (e *QuestionEndpoints) GetQuestionHandler(w http.ResponseWriter, r *http.Request) {
	question, err := e.questions.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "Question found", question)
}

func (e *QuestionEndpoints) QuestionAudioHandler(w http.ResponseWriter, r *http.Request) {
	questionID := chi.URLParam(r, "id")
	audio, err := e.audio.QuestionAudio(r.Context(), questionID)
	if err != nil {
		slog.Error("Failed to generate question audio", "error", err, "question_id", questionID)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(audio)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(audio); err != nil {
		slog.Error("Failed to write question audio", "error", err, "question_id", questionID)
	}
}
