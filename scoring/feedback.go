package scoring

import "fmt"

const (
	strongScoreThreshold   = 7.0
	fillerWarningThreshold = 5
	keywordPctThreshold    = 50.0
)

func strengths(communication, content float64) []string {
	var out []string
	if communication >= strongScoreThreshold {
		out = append(out, "Clear and confident communication")
	}
	if content >= strongScoreThreshold {
		out = append(out, "Good coverage of key concepts")
	}
	if len(out) == 0 {
		out = append(out, "Completed the answer")
	}
	return out
}

func weaknesses(fillerCount, wpm int, keywordPct float64) []string {
	var out []string
	if fillerCount > fillerWarningThreshold {
		out = append(out, fmt.Sprintf("Too many filler words detected (%d)", fillerCount))
	}
	if wpm > MaxComfortableWPM {
		out = append(out, fmt.Sprintf("Speaking too fast (%d words/min)", wpm))
	} else if wpm > 0 && wpm < MinComfortableWPM {
		out = append(out, fmt.Sprintf("Speaking too slowly (%d words/min)", wpm))
	}
	if keywordPct < keywordPctThreshold {
		out = append(out, "Missing important keywords in answer")
	}
	if len(out) == 0 {
		out = append(out, "Keep practicing for improvement")
	}
	return out
}

// tips always ends with the generic practice tip, so a report never has an empty list
func tips(fillerCount int, keywordPct float64) []string {
	var out []string
	if fillerCount > fillerWarningThreshold {
		out = append(out, "Practice answering without filler words by pausing instead")
	}
	if keywordPct < keywordPctThreshold {
		out = append(out, "Review the expected answer and include key concepts")
	}
	return append(out, "Practice this question multiple times to improve")
}
