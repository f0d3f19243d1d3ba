package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits prose into lowercase words, dropping stopwords and
// single-character words.
type Tokenizer struct {
	stopwords map[string]struct{}
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopwords: defaultStopwords()}
}

func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// splitWords splits on anything that is not a letter, digit or apostrophe
// inside a word.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if w := strings.Trim(current.String(), "'"); w != "" {
			words = append(words, w)
		}
		current.Reset()
	}

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			current.WriteRune(r)
			continue
		}
		flush()
	}
	flush()

	return words
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
