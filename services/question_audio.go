package services

import (
	"context"
	"fmt"
	"io"
)

// SpeechSynthesizer turns text into an audio stream
type SpeechSynthesizer interface {
	TextToSpeech(ctx context.Context, text, voiceID string) (io.ReadCloser, error)
}

// QuestionAudioService serves a spoken version of each question
type QuestionAudioService struct {
	questions *QuestionService
	tts       SpeechSynthesizer
	cache     *AudioCache
}

func NewQuestionAudioService(questions *QuestionService, tts SpeechSynthesizer, cache *AudioCache) *QuestionAudioService {
	return &QuestionAudioService{questions: questions, tts: tts, cache: cache}
}

// QuestionAudio returns mp3 audio of the question text, generated once per question and voice
func (s *QuestionAudioService) QuestionAudio(ctx context.Context, questionID string) ([]byte, error) {
	question, err := s.questions.Lookup(ctx, questionID)
	if err != nil {
		return nil, err
	}

	voiceID := PickQuestionVoice(question.Category)
	audio, err := s.cache.GetOrGenerate(ctx, question.Text, voiceID, func() (io.ReadCloser, error) {
		return s.tts.TextToSpeech(ctx, question.Text, voiceID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize question %s: %w", questionID, err)
	}
	return audio, nil
}
