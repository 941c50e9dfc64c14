package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer turns free text into comparable tokens. It is safe for
// concurrent use.
type Normalizer struct {
	minTokenLength int
	stopWords      map[string]struct{}
}

// NewNormalizer creates a normalizer from options
func NewNormalizer(opts Options) *Normalizer {
	stop := make(map[string]struct{}, len(opts.StopWords))
	for _, w := range opts.StopWords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	minLen := opts.MinTokenLength
	if minLen < 1 {
		minLen = DefaultMinTokenLength
	}
	return &Normalizer{minTokenLength: minLen, stopWords: stop}
}

// fold lowercases and strips combining marks so "Crème" and "creme" agree.
// Transformers carry state, so each call builds its own chain.
func fold(text string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		cases.Lower(language.Und),
		norm.NFC,
	)
	folded, _, err := transform.String(t, text)
	if err != nil {
		return strings.ToLower(text)
	}
	return folded
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokens returns the ordered lowercase tokens of text, made of letters and
// digits in any script. Runs of any other character separate tokens. Short tokens and stop words are
// dropped; duplicates are kept.
func (n *Normalizer) Tokens(text string) []string {
	fields := strings.FieldsFunc(fold(text), func(r rune) bool { return !isTokenRune(r) })

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < n.minTokenLength {
			continue
		}
		if _, stop := n.stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
