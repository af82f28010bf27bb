package whisper

import (
	"sort"
	"strings"
)

// AutoLanguage lets the engine detect the spoken language.
const AutoLanguage = "auto"

// languages holds the ISO-639-1 codes accepted by the OpenAI audio API.
var languages = map[string]string{
	"af": "afrikaans",
	"ar": "arabic",
	"hy": "armenian",
	"az": "azerbaijani",
	"be": "belarusian",
	"bs": "bosnian",
	"bg": "bulgarian",
	"ca": "catalan",
	"zh": "chinese",
	"hr": "croatian",
	"cs": "czech",
	"da": "danish",
	"nl": "dutch",
	"en": "english",
	"et": "estonian",
	"fi": "finnish",
	"fr": "french",
	"gl": "galician",
	"de": "german",
	"el": "greek",
	"he": "hebrew",
	"hi": "hindi",
	"hu": "hungarian",
	"is": "icelandic",
	"id": "indonesian",
	"it": "italian",
	"ja": "japanese",
	"kn": "kannada",
	"kk": "kazakh",
	"ko": "korean",
	"lv": "latvian",
	"lt": "lithuanian",
	"mk": "macedonian",
	"ms": "malay",
	"mr": "marathi",
	"mi": "maori",
	"ne": "nepali",
	"no": "norwegian",
	"fa": "persian",
	"pl": "polish",
	"pt": "portuguese",
	"ro": "romanian",
	"ru": "russian",
	"sr": "serbian",
	"sk": "slovak",
	"sl": "slovenian",
	"es": "spanish",
	"sw": "swahili",
	"sv": "swedish",
	"tl": "tagalog",
	"ta": "tamil",
	"th": "thai",
	"tr": "turkish",
	"uk": "ukrainian",
	"ur": "urdu",
	"vi": "vietnamese",
	"cy": "welsh",
}

// NormalizeLanguage lower-cases code and maps "" to AutoLanguage.
func NormalizeLanguage(code string) string {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" {
		return AutoLanguage
	}
	return trimmed
}

func LanguageName(code string) (string, bool) {
	name, ok := languages[strings.ToLower(strings.TrimSpace(code))]
	return name, ok
}

func LanguageCodes() []string {
	codes := make([]string, 0, len(languages))
	for code := range languages {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
