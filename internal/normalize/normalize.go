// Package normalize maps the many ways users and providers write a language
// to the codes mangashelf stores.
package normalize

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// bibliographic lists the ISO 639-2/B codes language.Parse does not map.
var bibliographic = map[string]string{
	"ger": "de", "fre": "fr", "dut": "nl", "chi": "zh", "cze": "cs",
	"gre": "el", "per": "fa", "rum": "ro", "slo": "sk", "alb": "sq",
	"arm": "hy", "baq": "eu", "bur": "my", "geo": "ka", "ice": "is",
	"mac": "mk", "may": "ms", "tib": "bo", "wel": "cy",
}

// known are the languages whose English and native names are recognized.
const known = "en es fr de it pt nl ru ja zh ko ar hi pl sv no da fi tr el he cs hu ro th " +
	"vi id ms uk ca hr sk bg lt lv et sl sr fa bn ta te mr my km lo sw af eu gl is " +
	"mk bs sq hy ka kk uz az mn tl"

var (
	englishNames = display.English.Languages()
	byName       = buildNames()
)

func buildNames() map[string]string {
	m := make(map[string]string)
	for _, code := range strings.Fields(known) {
		tag := language.Make(code)
		if n := englishNames.Name(tag); n != "" {
			m[strings.ToLower(n)] = code
		}
		if n := display.Self.Name(tag); n != "" {
			m[strings.ToLower(n)] = code
		}
	}
	return m
}

// LanguageCode converts various language representations to ISO 639-1 codes.
// It handles:
//   - ISO 639-1 codes: "en" -> "en"
//   - ISO 639-2 codes: "eng" -> "en", "ger" -> "de"
//   - Locale codes: "en-US", "en_GB" -> "en"
//   - Language names: "English", "español" -> "en", "es"
//
// Returns empty string for unrecognized values.
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(sanitizeString(raw)))
	if s == "" {
		return ""
	}
	if code, ok := byName[s]; ok {
		return code
	}

	if idx := strings.IndexAny(s, "-_"); idx > 0 {
		s = s[:idx]
	}
	if code, ok := bibliographic[s]; ok {
		return code
	}

	base, err := language.ParseBase(s)
	if err != nil {
		return ""
	}
	// Languages without a two-letter code are not used by any provider.
	if code := base.String(); len(code) == 2 {
		return code
	}
	return ""
}

// Language converts various language representations to English display
// names: "en" -> "English", "deu" -> "German".
// Returns empty string for unrecognized values.
func Language(raw string) string {
	code := LanguageCode(raw)
	if code == "" {
		return ""
	}
	return englishNames.Name(language.Make(code))
}

// sanitizeString removes null bytes, which some scraped pages leave in
// attribute values.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}

// Locale converts a language with an optional region to the form providers
// declare: "English" -> "en", "pt-br" -> "pt_BR", "es_419" -> "es".
// Returns empty string for unrecognized languages.
func Locale(raw string) string {
	s := strings.TrimSpace(sanitizeString(raw))
	idx := strings.IndexAny(s, "-_")
	if idx <= 0 {
		return LanguageCode(s)
	}
	code := LanguageCode(s[:idx])
	if code == "" {
		return ""
	}
	region := strings.ToUpper(s[idx+1:])
	if len(region) != 2 || !isLetters(region) {
		return code
	}
	return code + "_" + region
}

func isLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
