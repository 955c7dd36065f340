package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cvchat/internal/domain"
	"cvchat/internal/embedding/tfidf"
)

// Store is an in-process vector store. Records are scored by TF-IDF cosine
// similarity over the stored texts of a namespace, so no remote embedding
// service is needed. It serves tests and offline runs.
type Store struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

func NewStore() *Store {
	return &Store{indexes: make(map[string]*Index)}
}

func (s *Store) EnsureIndex(ctx context.Context, name string) (domain.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.indexes[name]; ok {
		return idx, nil
	}
	idx := &Index{namespaces: make(map[string]*namespace)}
	s.indexes[name] = idx
	return idx, nil
}

func (s *Store) OpenIndex(ctx context.Context, name string) (domain.Index, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	if !ok {
		return nil, fmt.Errorf("index %q not found", name)
	}
	return idx, nil
}

func (s *Store) ListIndexes(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Index holds the records of one index, partitioned by namespace.
type Index struct {
	mu         sync.Mutex
	namespaces map[string]*namespace
}

type namespace struct {
	order   []string
	records map[string]domain.Chunk
	vec     *tfidf.Vectorizer
	vectors map[string][]float64
	dirty   bool
}

func (i *Index) ns(name string) *namespace {
	n, ok := i.namespaces[name]
	if !ok {
		n = &namespace{records: make(map[string]domain.Chunk)}
		i.namespaces[name] = n
	}
	return n
}

// Upsert stores records, replacing any existing record with the same ID.
func (i *Index) Upsert(ctx context.Context, ns string, records []domain.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := i.ns(ns)
	for _, r := range records {
		if _, exists := n.records[r.ID]; !exists {
			n.order = append(n.order, r.ID)
		}
		n.records[r.ID] = r
	}
	n.dirty = true
	return nil
}

// SearchRecords scores every stored record against the query and returns
// the topK best, highest score first. Ties keep insertion order. Hits use
// the same field names as the remote payload so callers normalize them the
// same way.
func (i *Index) SearchRecords(ctx context.Context, ns, query string, topK int) ([]domain.RawHit, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	n := i.ns(ns)
	if len(n.order) == 0 {
		return nil, nil
	}
	if err := n.refit(); err != nil {
		return nil, err
	}
	qvec, err := n.vec.Embed(query)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 3
	}
	hits := make([]domain.RawHit, 0, len(n.order))
	for _, id := range n.order {
		rec := n.records[id]
		hits = append(hits, domain.RawHit{
			ID:    id,
			Score: dot(qvec, n.vectors[id]),
			Fields: map[string]any{
				"category":   rec.Category,
				"chunk_text": rec.Text,
			},
		})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

func (i *Index) Stats(ctx context.Context) (domain.IndexStats, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	stats := domain.IndexStats{Namespaces: make(map[string]int)}
	for name, n := range i.namespaces {
		stats.Namespaces[name] = len(n.order)
		stats.TotalRecords += len(n.order)
	}
	return stats, nil
}

// refit rebuilds the vectorizer and record vectors after upserts.
func (n *namespace) refit() error {
	if !n.dirty && n.vec != nil {
		return nil
	}
	corpus := make([]string, 0, len(n.order))
	for _, id := range n.order {
		corpus = append(corpus, n.records[id].Text)
	}
	vec := tfidf.NewVectorizer()
	if err := vec.Fit(corpus); err != nil {
		return err
	}
	vectors := make(map[string][]float64, len(n.order))
	for _, id := range n.order {
		v, err := vec.Embed(n.records[id].Text)
		if err != nil {
			return err
		}
		vectors[id] = v
	}
	n.vec = vec
	n.vectors = vectors
	n.dirty = false
	return nil
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
