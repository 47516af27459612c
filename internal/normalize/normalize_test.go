package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		// ISO 639-1 codes (passthrough)
		{"en", "en"},
		{"de", "de"},
		// ISO 639-2 codes
		{"eng", "en"},
		{"deu", "de"},
		{"ger", "de"}, // bibliographic variant
		// Locale codes
		{"en-US", "en"},
		{"en_GB", "en"},
		// Language names
		{"English", "en"},
		{"ENGLISH", "en"},
		{"german", "de"},
		{"Japanese", "ja"},
		{"español", "es"},
		// Edge cases
		{"", ""},
		{"  en  ", "en"},
		{"unknown", ""},
		{"12", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, LanguageCode(tt.input))
		})
	}
}

func TestLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "English"},
		{"fr", "French"},
		{"ja", "Japanese"},
		{"  french  ", "French"},
		{"deu", "German"},
		{"pt_BR", "Portuguese"},
		{"", ""},
		{"unknown", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Language(tt.input))
		})
	}
}

func TestLocale(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"English", "en"},
		{"pt_BR", "pt_BR"},
		{"pt-br", "pt_BR"},
		{"es_419", "es"},
		{"fra", "fr"},
		{"  ja  ", "ja"},
		{"klingon", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Locale(tt.input))
		})
	}
}
