package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"cvchat/internal/domain"
)

// SentenceChunker splits text into overlapping windows of whole sentences.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
	splitter          *regexp.Regexp
}

// NewSentenceChunker validates the window parameters. The overlap must be
// smaller than the window, otherwise the window cannot advance.
func NewSentenceChunker(sentencesPerChunk, overlapSentences int) (*SentenceChunker, error) {
	if sentencesPerChunk <= 0 {
		return nil, fmt.Errorf("%w: sentences per chunk must be positive, got %d",
			domain.ErrInvalidChunking, sentencesPerChunk)
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		return nil, fmt.Errorf("%w: overlap %d out of range [0, %d)",
			domain.ErrInvalidChunking, overlapSentences, sentencesPerChunk)
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
		splitter:          regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}, nil
}

// Chunk produces the ordered window sequence for the given text. The window
// advances by sentencesPerChunk-overlapSentences each step, so the chunk
// count is ceil(N/step) for N sentences; the final chunk is truncated when
// fewer sentences remain. Output is fully deterministic.
func (c *SentenceChunker) Chunk(text, category string) []domain.Chunk {
	sentences := c.splitter.FindAllString(text, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		sentences = []string{trimmed}
	}
	for i := range sentences {
		sentences[i] = strings.TrimSpace(sentences[i])
	}
	step := c.sentencesPerChunk - c.overlapSentences
	var chunks []domain.Chunk
	for start := 0; start < len(sentences); start += step {
		end := start + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, domain.Chunk{
			ID:       fmt.Sprintf("cv_chunk_%d", len(chunks)+1),
			Text:     strings.Join(sentences[start:end], " "),
			Category: category,
		})
	}
	return chunks
}
