package services

import (
	"crypto/sha1"
	"encoding/binary"
	"strings"
)

// Adam
const defaultVoiceID = "pNInz6obpgDQGcFmaJgB"

// Stock ElevenLabs voices
var interviewerVoices = []string{
	"EXAVITQu4vr4xnSDxMaL", // Rachel
	"21m00Tcm4TlvDq8ikWAM", // Domi
	"AZnzlk1XvdvUeBnXmlld", // Bella
	"ErXwobaYiN019PkySvjV", // Elli
	"MF3mGyEYCl7XYWbV9V6O", // Dorothy
	"pNInz6obpgDQGcFmaJgB", // Adam
	"TxGEqnHWrfWFTfGW9XjX", // Antoni
	"VR6AewLTigWG4xSOukaG", // Josh
	"yoZ06aMxZJJ28mfd3POQ", // Arnold
	"bVMeCyTHy58xNoL34h3p", // Clyde
}

// PickQuestionVoice gives every question category its own stable interviewer voice
func PickQuestionVoice(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return defaultVoiceID
	}
	h := sha1.New()
	h.Write([]byte(category))
	sum := h.Sum(nil)
	idx := binary.BigEndian.Uint16(sum) % uint16(len(interviewerVoices))
	return interviewerVoices[idx]
}
