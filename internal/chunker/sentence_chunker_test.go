package chunker

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cvchat/internal/domain"
)

func sentencesDoc(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Sentence number %d. ", i)
	}
	return b.String()
}

func TestChunkCountMatchesCeiling(t *testing.T) {
	c, err := NewSentenceChunker(3, 1)
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}
	for n := 1; n <= 12; n++ {
		chunks := c.Chunk(sentencesDoc(n), "cv")
		want := (n + 1) / 2 // ceil(n/2) for step size-overlap = 2
		if len(chunks) != want {
			t.Errorf("n=%d: got %d chunks, want %d", n, len(chunks), want)
		}
	}
}

func TestChunkOverlapRepeatsTail(t *testing.T) {
	c, err := NewSentenceChunker(3, 1)
	if err != nil {
		t.Fatalf("constructor failed: %v", err)
	}
	chunks := c.Chunk(sentencesDoc(10), "cv")
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks for 10 sentences, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1].Text, ". ")
		last := prev[len(prev)-1]
		if !strings.HasPrefix(chunks[i].Text, strings.TrimSuffix(last, ".")) {
			t.Errorf("chunk %d does not start with the last sentence of chunk %d:\nprev=%q\ncur=%q",
				i, i-1, chunks[i-1].Text, chunks[i].Text)
		}
	}
}

func TestChunkIDsAndCategory(t *testing.T) {
	c, _ := NewSentenceChunker(3, 1)
	chunks := c.Chunk(sentencesDoc(4), "cv")
	for i, ch := range chunks {
		if want := fmt.Sprintf("cv_chunk_%d", i+1); ch.ID != want {
			t.Errorf("chunk %d: id %q, want %q", i, ch.ID, want)
		}
		if ch.Category != "cv" {
			t.Errorf("chunk %d: category %q", i, ch.Category)
		}
	}
}

func TestInvalidConfigurationRejected(t *testing.T) {
	cases := []struct{ size, overlap int }{
		{2, 2},
		{3, 4},
		{0, 0},
		{3, -1},
	}
	for _, tc := range cases {
		if _, err := NewSentenceChunker(tc.size, tc.overlap); !errors.Is(err, domain.ErrInvalidChunking) {
			t.Errorf("size=%d overlap=%d: expected ErrInvalidChunking, got %v", tc.size, tc.overlap, err)
		}
	}
}

func TestChunkEmptyAndUnpunctuatedText(t *testing.T) {
	c, _ := NewSentenceChunker(3, 1)
	if chunks := c.Chunk("   \n ", "cv"); chunks != nil {
		t.Errorf("expected no chunks for blank text, got %d", len(chunks))
	}
	chunks := c.Chunk("no terminal punctuation here", "cv")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "no terminal punctuation here" {
		t.Errorf("unexpected chunk text: %q", chunks[0].Text)
	}
}

func TestChunkDeterministic(t *testing.T) {
	c, _ := NewSentenceChunker(3, 1)
	doc := sentencesDoc(7)
	a := c.Chunk(doc, "cv")
	b := c.Chunk(doc, "cv")
	if len(a) != len(b) {
		t.Fatalf("chunk counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}
