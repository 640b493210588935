package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// StripNbsp removes literal non-breaking-space entities and runes the
// portals pad their table cells with, plus surrounding whitespace.
func StripNbsp(s string) string {
	s = strings.ReplaceAll(s, "&nbsp;", "")
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimSpace(s)
}

// Canonicalize reduces a marker phrase to a form safe to compare against
// pages that are not reliably normalized UTF-8: only ASCII letters and
// digits survive, lowercased. "Contraseña incorrecta" and its mojibake
// rendering "ContraseÃ±a incorrecta" both canonicalize to
// "contraseaincorrecta".
func Canonicalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
