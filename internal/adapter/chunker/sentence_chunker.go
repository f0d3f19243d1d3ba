package chunker

import (
	"strings"

	"vectorchat/internal/domain"
)

// SentenceChunker groups sentences into chunks of at most maxSentences.
// A sentence ends at '.', '?' or '!' or at the end of a line.
type SentenceChunker struct {
	maxSentences int
}

// NewSentenceChunker returns a chunker; maxSentences <= 0 keeps the whole
// text in a single chunk.
func NewSentenceChunker(maxSentences int) *SentenceChunker {
	return &SentenceChunker{maxSentences: maxSentences}
}

func (c *SentenceChunker) Chunk(text string) []domain.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.maxSentences <= 0 {
		return []domain.Chunk{{Index: 0, Text: strings.TrimSpace(text)}}
	}

	sentences := SplitSentences(text)

	var chunks []domain.Chunk
	for start := 0; start < len(sentences); start += c.maxSentences {
		end := min(start+c.maxSentences, len(sentences))
		chunks = append(chunks, domain.Chunk{
			Index: len(chunks),
			Text:  strings.Join(sentences[start:end], " "),
		})
	}
	return chunks
}

// SplitSentences splits text into trimmed sentences, skipping blank lines.
func SplitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		for _, r := range line {
			current.WriteRune(r)
			if r == '.' || r == '?' || r == '!' {
				flush()
			}
		}
		flush()
	}

	return sentences
}
