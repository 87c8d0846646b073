package ocr

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanOptions controls post-processing of recognized text. Line breaks are
// always kept because extraction reads values from following lines.
type CleanOptions struct {
	NormalizeForm      string // "NFKC" (default), "NFC", "NFD", "NFKD", "none"
	RemoveControlChars bool
	RemoveZeroWidth    bool
	ASCIIDigits        bool // map Arabic-Indic and Eastern Arabic-Indic digits to 0-9
	ReplaceTypography  bool // curly quotes, dashes and odd spaces to ASCII
	Trim               bool
}

// DefaultCleanOptions returns the cleanup used for form fields.
func DefaultCleanOptions() CleanOptions {
	return CleanOptions{
		NormalizeForm:      "NFKC",
		RemoveControlChars: true,
		RemoveZeroWidth:    true,
		ASCIIDigits:        true,
		ReplaceTypography:  true,
		Trim:               true,
	}
}

// CleanText applies opts to s.
func CleanText(s string, opts CleanOptions) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = normalize(s, opts.NormalizeForm)

	if opts.RemoveZeroWidth || opts.RemoveControlChars || opts.ASCIIDigits {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			switch {
			case opts.RemoveZeroWidth && isZeroWidth(r):
				continue
			case opts.RemoveControlChars && r != '\n' && r != '\t' && unicode.IsControl(r):
				continue
			case opts.ASCIIDigits && r >= '\u0660' && r <= '\u0669':
				b.WriteRune('0' + (r - '\u0660'))
			case opts.ASCIIDigits && r >= '\u06F0' && r <= '\u06F9':
				b.WriteRune('0' + (r - '\u06F0'))
			default:
				b.WriteRune(r)
			}
		}
		s = b.String()
	}

	if opts.ReplaceTypography {
		s = typographyReplacer.Replace(s)
	}
	if opts.Trim {
		s = strings.TrimSpace(s)
	}
	return s
}

func normalize(s, form string) string {
	switch strings.ToUpper(form) {
	case "NFKC", "":
		return norm.NFKC.String(s)
	case "NFC":
		return norm.NFC.String(s)
	case "NFD":
		return norm.NFD.String(s)
	case "NFKD":
		return norm.NFKD.String(s)
	}
	return s
}

func isZeroWidth(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200D', '\u200E', '\u200F', '\uFEFF':
		return true
	}
	return false
}

var typographyReplacer = newReplacer(map[string]string{
	"\u2018": "'",
	"\u2019": "'",
	"\u201C": "\"",
	"\u201D": "\"",
	"\u2013": "-",
	"\u2014": "-",
	"\u00A0": " ",
	"\u2009": " ",
	"\u066B": ".", // Arabic decimal separator
	"\u060C": ",", // Arabic comma
})

// newReplacer orders keys longest first so overlapping keys replace predictably.
func newReplacer(m map[string]string) *strings.Replacer {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return strings.NewReplacer(pairs...)
}
