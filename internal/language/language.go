package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto requests automatic language detection from the recognition engine.
const Auto = "auto"

type entry struct {
	code2   string   // ISO 639-1 (2-letter)
	code3   string   // ISO 639-2 primary (3-letter)
	alt3    string   // ISO 639-2 alternate (e.g. "fre" vs "fra")
	display string   // Human-readable name
	words   []string // Full word forms (e.g. "english")
}

// Order matches the selection list shown to users.
var languages = []entry{
	{"pt", "por", "", "Portuguese", []string{"portuguese", "portugues"}},
	{"en", "eng", "", "English", []string{"english"}},
	{"es", "spa", "", "Spanish", []string{"spanish"}},
	{"fr", "fra", "fre", "French", []string{"french"}},
	{"de", "deu", "ger", "German", []string{"german"}},
	{"it", "ita", "", "Italian", []string{"italian"}},
	{"ja", "jpn", "", "Japanese", []string{"japanese"}},
	{"zh", "zho", "chi", "Chinese", []string{"chinese"}},
	{"ru", "rus", "", "Russian", []string{"russian"}},
	{"ko", "kor", "", "Korean", []string{"korean"}},
	{"ar", "ara", "", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "Hindi", []string{"hindi"}},
	{"nl", "nld", "dut", "Dutch", []string{"dutch"}},
	{"pl", "pol", "", "Polish", []string{"polish"}},
	{"sv", "swe", "", "Swedish", []string{"swedish"}},
	{"no", "nor", "", "Norwegian", []string{"norwegian"}},
	{"da", "dan", "", "Danish", []string{"danish"}},
	{"fi", "fin", "", "Finnish", []string{"finnish"}},
	{"tr", "tur", "", "Turkish", []string{"turkish"}},
	{"uk", "ukr", "", "Ukrainian", []string{"ukrainian"}},
	{"cs", "ces", "cze", "Czech", []string{"czech"}},
	{"hu", "hun", "", "Hungarian", []string{"hungarian"}},
	{"th", "tha", "", "Thai", []string{"thai"}},
	{"vi", "vie", "", "Vietnamese", []string{"vietnamese"}},
	{"he", "heb", "", "Hebrew", []string{"hebrew"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// Option is a selectable transcription language.
type Option struct {
	Code    string `json:"code"`
	Display string `json:"display"`
	Native  string `json:"native,omitempty"`
}

// Options returns the selectable languages, led by automatic detection.
func Options() []Option {
	out := make([]Option, 0, len(languages)+1)
	out = append(out, Option{Code: Auto, Display: "Automatic detection"})
	for _, e := range languages {
		out = append(out, Option{Code: e.code2, Display: e.display, Native: NativeName(e.code2)})
	}
	return out
}

// IsSupported reports whether code names auto or a catalogued language.
func IsSupported(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == Auto {
		return true
	}
	return lookup(code) != nil
}

// Normalize validates a requested language and returns the value handed to the
// recognition engine: "auto" or an ISO 639-1 code. Codes outside the catalogue
// are accepted when they parse as a BCP-47 base language.
func Normalize(code string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(code))
	if trimmed == "" || trimmed == Auto {
		return Auto, nil
	}
	if e := lookup(trimmed); e != nil {
		return e.code2, nil
	}
	tag, err := xlanguage.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("unsupported language %q", code)
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No {
		return "", fmt.Errorf("unsupported language %q", code)
	}
	return base.String(), nil
}

// ToISO2 converts any recognized language code to ISO 639-1 (2-letter).
// Returns empty string for unrecognized codes. 2-letter codes pass through.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e := lookup(code); e != nil {
		return e.code2
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// ToISO3 converts any recognized language code to ISO 639-2 (3-letter).
// Returns "und" for unrecognized 2-letter codes, passes through 3-letter codes.
func ToISO3(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "und"
	}
	if e := lookup(code); e != nil {
		return e.code3
	}
	if len(code) == 3 {
		return code
	}
	return "und"
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if strings.EqualFold(trimmed, Auto) {
		return "Automatic detection"
	}
	if e := lookup(trimmed); e != nil {
		return e.display
	}
	if tag, err := xlanguage.Parse(trimmed); err == nil {
		if name := display.English.Languages().Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}

// NativeName returns the language's self-name (e.g. "Deutsch" for "de").
func NativeName(code string) string {
	tag, err := xlanguage.Parse(strings.TrimSpace(code))
	if err != nil {
		return ""
	}
	return display.Self.Name(tag)
}
