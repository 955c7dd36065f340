package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"cvchat/internal/chunker"
	"cvchat/internal/domain"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 30
)

// Pipeline loads documents into a vector index: read, chunk, upsert, then
// wait until the index reports the records as searchable. Managed indexes
// apply upserts asynchronously, so without the wait an immediate search
// can miss freshly written records.
type Pipeline struct {
	store     domain.VectorStore
	chunker   *chunker.SentenceChunker
	namespace string
	logger    *log.Logger

	PollInterval time.Duration
	MaxPolls     int
}

func New(store domain.VectorStore, ch *chunker.SentenceChunker, namespace string, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{
		store:        store,
		chunker:      ch,
		namespace:    namespace,
		logger:       logger,
		PollInterval: defaultPollInterval,
		MaxPolls:     defaultMaxPolls,
	}
}

// IngestFile reads path and ingests its contents under the given index and
// category. It returns the chunks that were written.
func (p *Pipeline) IngestFile(ctx context.Context, indexName, path, category string) ([]domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return p.IngestText(ctx, indexName, string(data), category)
}

// IngestText chunks text and upserts the chunks one record at a time,
// then blocks until the namespace reports at least as many records as
// were written.
func (p *Pipeline) IngestText(ctx context.Context, indexName, text, category string) ([]domain.Chunk, error) {
	chunks := p.chunker.Chunk(text, category)
	if len(chunks) == 0 {
		p.logger.Printf("ingest: nothing to write for index %s", indexName)
		return nil, nil
	}

	index, err := p.store.EnsureIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("ensure index %s: %w", indexName, err)
	}

	for _, c := range chunks {
		if err := index.Upsert(ctx, p.namespace, []domain.Chunk{c}); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", c.ID, err)
		}
		p.logger.Printf("ingest: wrote %s (%d bytes)", c.ID, len(c.Text))
	}

	if err := p.waitSearchable(ctx, index, len(chunks)); err != nil {
		return nil, err
	}
	return chunks, nil
}

// waitSearchable polls index stats until the namespace holds at least
// want records. Counting is the only signal the index exposes, so other
// writers inflating the count can only end the wait early, never extend it.
func (p *Pipeline) waitSearchable(ctx context.Context, index domain.Index, want int) error {
	for attempt := 0; attempt < p.MaxPolls; attempt++ {
		stats, err := index.Stats(ctx)
		if err != nil {
			p.logger.Printf("ingest: stats poll failed: %v", err)
		} else if stats.Namespaces[p.namespace] >= want {
			p.logger.Printf("ingest: %d records searchable in namespace %s", stats.Namespaces[p.namespace], p.namespace)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.PollInterval):
		}
	}
	return fmt.Errorf("ingest: records not searchable after %d polls: %w", p.MaxPolls, domain.ErrRemoteUnavailable)
}
