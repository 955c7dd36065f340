package retriever

import (
	"context"
	"fmt"
	"log"

	"cvchat/internal/domain"
)

// previewWidth bounds hit text in log output only; the full text always
// flows downstream.
const previewWidth = 80

// Normalize converts raw remote hits into SearchHits. Missing fields
// default to the zero value rather than failing: partial metadata must not
// drop an otherwise valid hit. A hit whose fields carry the wrong type is
// malformed; it is skipped and logged, and the rest are kept.
func Normalize(hits []domain.RawHit, logger *log.Logger) []domain.SearchHit {
	out := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		sh := domain.SearchHit{ID: h.ID, Score: h.Score}
		ok := true
		if raw, present := h.Fields["category"]; present {
			if s, isString := raw.(string); isString {
				sh.Category = s
			} else {
				ok = false
			}
		}
		if raw, present := h.Fields["chunk_text"]; present {
			if s, isString := raw.(string); isString {
				sh.Text = s
			} else {
				ok = false
			}
		}
		if !ok {
			if logger != nil {
				logger.Printf("skipping hit: %v", &domain.ParseError{HitID: h.ID, Reason: "non-string field value"})
			}
			continue
		}
		out = append(out, sh)
	}
	return out
}

// Retriever wraps index searches into normalized hit lists.
type Retriever struct {
	store     domain.VectorStore
	namespace string
	logger    *log.Logger
	debug     bool
}

func New(store domain.VectorStore, namespace string, logger *log.Logger) *Retriever {
	return &Retriever{store: store, namespace: namespace, logger: logger}
}

// SetDebug enables per-hit logging with truncated previews.
func (r *Retriever) SetDebug(debug bool) { r.debug = debug }

// Retrieve searches the named index and returns normalized hits.
func (r *Retriever) Retrieve(ctx context.Context, indexName, query string, topK int) ([]domain.SearchHit, error) {
	idx, err := r.store.OpenIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", indexName, err)
	}
	raw, err := idx.SearchRecords(ctx, r.namespace, query, topK)
	if err != nil {
		return nil, fmt.Errorf("search index %s: %w", indexName, err)
	}
	hits := Normalize(raw, r.logger)
	if r.debug && r.logger != nil {
		for _, h := range hits {
			r.logger.Printf("id: %-10s | score: %-5.2f | category: %-10s | text: %s",
				h.ID, h.Score, h.Category, preview(h.Text))
		}
	}
	return hits, nil
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= previewWidth {
		return s
	}
	return string(runes[:previewWidth]) + "..."
}
