package entities

import "strings"

// Voice is a prebuilt voice of the remote speech model
type Voice string

const (
	VoiceKore   Voice = "Kore"
	VoicePuck   Voice = "Puck"
	VoiceZephyr Voice = "Zephyr"
	VoiceCharon Voice = "Charon"
	VoiceFenrir Voice = "Fenrir"
)

// DefaultVoice is used when a submission does not name one
const DefaultVoice = VoiceFenrir

// VoiceOption describes a voice for pickers
type VoiceOption struct {
	ID          Voice  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// VoiceOptions lists the supported voices in display order
var VoiceOptions = []VoiceOption{
	{ID: VoiceKore, Name: "Kore", Description: "Clear and informative"},
	{ID: VoicePuck, Name: "Puck", Description: "Energetic and playful"},
	{ID: VoiceZephyr, Name: "Zephyr", Description: "Smooth and professional"},
	{ID: VoiceCharon, Name: "Charon", Description: "Deep and authoritative"},
	{ID: VoiceFenrir, Name: "Fenrir", Description: "Warm and friendly"},
}

// Valid reports whether v is one of the supported voices
func (v Voice) Valid() bool {
	for _, option := range VoiceOptions {
		if option.ID == v {
			return true
		}
	}
	return false
}

// ParseVoice matches a voice name case-insensitively
func ParseVoice(name string) (Voice, bool) {
	for _, option := range VoiceOptions {
		if strings.EqualFold(string(option.ID), strings.TrimSpace(name)) {
			return option.ID, true
		}
	}
	return "", false
}

// Language is a translation target
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DefaultLanguage is used when a submission does not name a target language
const DefaultLanguage = "Spanish"

// Languages lists the target languages offered to users
var Languages = []Language{
	{Code: "en", Name: "English"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
}

// LookupLanguage finds a language by code or name. Unknown names are not an error for
// callers: the remote model accepts free-form language names.
func LookupLanguage(codeOrName string) (Language, bool) {
	key := strings.TrimSpace(codeOrName)
	for _, lang := range Languages {
		if strings.EqualFold(lang.Code, key) || strings.EqualFold(lang.Name, key) {
			return lang, true
		}
	}
	return Language{}, false
}
