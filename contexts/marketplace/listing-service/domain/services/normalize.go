package services

import "strings"

// NormalizeTitle lowercases and collapses non-alphanumeric runs to single
// spaces. The result is what the matcher and the trigram index see.
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingSpace := false
	for _, r := range strings.ToLower(title) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "of": {}, "in": {},
	"lp": {}, "ep": {}, "vinyl": {}, "record": {}, "album": {},
	"reissue": {}, "pressing": {}, "edition": {},
}

// Tokenize normalizes the text and returns its token set with stop words
// removed.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, token := range strings.Fields(NormalizeTitle(text)) {
		if _, stop := stopWords[token]; stop {
			continue
		}
		tokens[token] = struct{}{}
	}
	return tokens
}
