// Package scoring turns a transcript into content, communication, confidence and overall scores
// plus written feedback. Everything here is a pure function of its inputs.
package scoring

import (
	"math"
	"regexp"
	"strings"
)

const (
	// NoAnswerPlaceholder replaces a blank transcript before scoring
	NoAnswerPlaceholder = "No answer provided"

	// DefaultDurationSeconds replaces a missing or zero duration
	DefaultDurationSeconds = 60

	// DefaultConfidenceScore is used when no confidence signal is supplied
	DefaultConfidenceScore = 7.5

	// NeutralContentScore is used when the question has no expected keywords
	NeutralContentScore = 5.0

	ContentWeight       = 0.4
	CommunicationWeight = 0.35
	ConfidenceWeight    = 0.25

	// Speaking rates outside [MinComfortableWPM, MaxComfortableWPM] cost a flat penalty
	MinComfortableWPM = 100
	MaxComfortableWPM = 180

	maxScore          = 10.0
	fillerPenaltyEach = 0.2
	fillerPenaltyCap  = 4.0
	paceBandPenalty   = 2.0
)

// fillerPatterns are matched independently against the lowercased transcript
var fillerPatterns = compileFillers(
	"um", "uh", "like", "you know", "basically", "actually", "sort of", "kind of", "literally",
)

func compileFillers(words ...string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}

// Input is what the engine needs to score one answer
type Input struct {
	Transcript       string
	DurationSeconds  int
	ExpectedKeywords string // comma-separated, may be empty

	// Confidence overrides DefaultConfidenceScore when a real signal is available
	Confidence *float64
}

// Report is the structured outcome of scoring one answer
type Report struct {
	ContentScore           float64  `json:"content_score"`
	CommunicationScore     float64  `json:"communication_score"`
	ConfidenceScore        float64  `json:"confidence_score"`
	OverallScore           float64  `json:"overall_score"`
	WordsPerMinute         int      `json:"words_per_minute"`
	FillerWordCount        int      `json:"filler_word_count"`
	KeywordMatchPercentage float64  `json:"keyword_match_percentage"`
	Strengths              []string `json:"strengths"`
	Weaknesses             []string `json:"weaknesses"`
	Tips                   []string `json:"tips"`
	Transcript             string   `json:"transcription"`
}

// Analyze scores a single answer. Blank transcripts and non-positive durations are replaced
// with defaults rather than rejected, so it never fails.
func Analyze(in Input) Report {
	transcript := in.Transcript
	blank := strings.TrimSpace(transcript) == ""
	if blank {
		transcript = NoAnswerPlaceholder
	}

	duration := in.DurationSeconds
	if duration <= 0 {
		duration = DefaultDurationSeconds
	}

	fillers := CountFillerWords(transcript)
	wpm := 0
	if !blank {
		wpm = WordsPerMinute(transcript, duration)
	}

	content := KeywordScore(transcript, in.ExpectedKeywords)
	communication := CommunicationScore(fillers, wpm)
	confidence := DefaultConfidenceScore
	if in.Confidence != nil {
		confidence = clamp(*in.Confidence, 0, maxScore)
	}
	keywordPct := content * 10

	return Report{
		ContentScore:           content,
		CommunicationScore:     communication,
		ConfidenceScore:        confidence,
		OverallScore:           OverallScore(content, communication, confidence),
		WordsPerMinute:         wpm,
		FillerWordCount:        fillers,
		KeywordMatchPercentage: keywordPct,
		Strengths:              strengths(communication, content),
		Weaknesses:             weaknesses(fillers, wpm, keywordPct),
		Tips:                   tips(fillers, keywordPct),
		Transcript:             transcript,
	}
}

// CountFillerWords sums whole-word matches of every filler pattern
func CountFillerWords(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	count := 0
	for _, p := range fillerPatterns {
		count += len(p.FindAllStringIndex(lower, -1))
	}
	return count
}

// WordCount counts whitespace-delimited tokens
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// WordsPerMinute returns the rounded speaking rate, or 0 for empty text or zero duration
func WordsPerMinute(text string, durationSeconds int) int {
	words := WordCount(text)
	if words == 0 || durationSeconds <= 0 {
		return 0
	}
	minutes := float64(durationSeconds) / 60.0
	return int(math.Round(float64(words) / minutes))
}

// KeywordScore is the share of expected keywords found in the transcript on a 0-10 scale
func KeywordScore(text, expectedKeywords string) float64 {
	keywords := splitKeywords(expectedKeywords)
	if len(keywords) == 0 {
		return NeutralContentScore
	}
	lower := strings.ToLower(text)
	matches := 0
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			matches++
		}
	}
	return float64(matches) / float64(len(keywords)) * maxScore
}

// splitKeywords keeps empty tokens between commas; an empty keyword is contained in any text
func splitKeywords(expected string) []string {
	if strings.TrimSpace(expected) == "" {
		return nil
	}
	parts := strings.Split(expected, ",")
	for i, k := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(k))
	}
	return parts
}

// CommunicationScore penalises filler words (capped) and a pace outside the comfortable band
func CommunicationScore(fillerCount, wpm int) float64 {
	score := maxScore
	score -= math.Min(float64(fillerCount)*fillerPenaltyEach, fillerPenaltyCap)
	if wpm > 0 && (wpm < MinComfortableWPM || wpm > MaxComfortableWPM) {
		score -= paceBandPenalty
	}
	return math.Max(score, 0)
}

// OverallScore is the weighted composite of the three sub-scores
func OverallScore(content, communication, confidence float64) float64 {
	return content*ContentWeight + communication*CommunicationWeight + confidence*ConfidenceWeight
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
