package language

import (
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

var english = display.English.Languages()

// Whisper-style backends report full language words rather than BCP 47
// codes. Map the common ones onto tags so Normalize and DisplayName treat
// "english" and "en" the same.
var wordToTag = map[string]xlang.Tag{
	"english":    xlang.English,
	"spanish":    xlang.Spanish,
	"french":     xlang.French,
	"german":     xlang.German,
	"italian":    xlang.Italian,
	"portuguese": xlang.Portuguese,
	"japanese":   xlang.Japanese,
	"korean":     xlang.Korean,
	"chinese":    xlang.Chinese,
	"russian":    xlang.Russian,
	"arabic":     xlang.Arabic,
	"hindi":      xlang.Hindi,
	"dutch":      xlang.Dutch,
	"polish":     xlang.Polish,
	"swedish":    xlang.Swedish,
	"danish":     xlang.Danish,
	"norwegian":  xlang.Norwegian,
	"finnish":    xlang.Finnish,
}

func tagFor(code string) (xlang.Tag, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return xlang.Und, false
	}
	if tag, ok := wordToTag[code]; ok {
		return tag, true
	}
	tag, err := xlang.Parse(code)
	if err != nil || tag == xlang.Und {
		return xlang.Und, false
	}
	return tag, true
}

// Normalize maps any recognizable language identifier ("en", "eng",
// "english") to its canonical base code. Unrecognized input is returned
// lowercased so callers never lose what the backend reported.
func Normalize(code string) string {
	fallback := strings.ToLower(strings.TrimSpace(code))
	tag, ok := tagFor(code)
	if !ok {
		return fallback
	}
	base, conf := tag.Base()
	if conf == xlang.No {
		return fallback
	}
	return base.String()
}

// DisplayName returns the English name for a recognized language identifier.
// Returns "Unknown" for empty input and the uppercased input otherwise.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	tag, ok := tagFor(trimmed)
	if !ok {
		return strings.ToUpper(trimmed)
	}
	if name := english.Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}
