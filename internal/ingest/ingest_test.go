package ingest

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cvchat/internal/chunker"
	"cvchat/internal/domain"
	"cvchat/internal/vectorstore/memory"
)

func newPipeline(t *testing.T, store domain.VectorStore) *Pipeline {
	t.Helper()
	ch, err := chunker.NewSentenceChunker(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	p := New(store, ch, "cv-namespace", log.New(io.Discard, "", 0))
	p.PollInterval = time.Millisecond
	return p
}

func TestIngestTextEndToEnd(t *testing.T) {
	store := memory.NewStore()
	p := newPipeline(t, store)

	text := "Uno. Dos. Tres. Cuatro. Cinco. Seis. Siete. Ocho. Nueve. Diez."
	chunks, err := p.IngestText(context.Background(), "cv-index", text, "cv")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 5 {
		t.Fatalf("chunks = %d, want 5", len(chunks))
	}

	index, err := store.OpenIndex(context.Background(), "cv-index")
	if err != nil {
		t.Fatal(err)
	}
	stats, err := index.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Namespaces["cv-namespace"] != 5 {
		t.Fatalf("namespace records = %d, want 5", stats.Namespaces["cv-namespace"])
	}

	hits, err := index.SearchRecords(context.Background(), "cv-namespace", "Cuatro", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) == 0 || len(hits) > 3 {
		t.Fatalf("hits = %d, want 1..3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("hits not in descending order: %v then %v", hits[i-1].Score, hits[i].Score)
		}
	}
}

func TestIngestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cv.txt")
	if err := os.WriteFile(path, []byte("Trabajó en Google. Sabe Go. Vive en Madrid."), 0o644); err != nil {
		t.Fatal(err)
	}

	store := memory.NewStore()
	p := newPipeline(t, store)
	chunks, err := p.IngestFile(context.Background(), "cv-index", path, "cv")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if chunks[0].Category != "cv" {
		t.Fatalf("category = %q", chunks[0].Category)
	}
}

func TestIngestFileMissing(t *testing.T) {
	p := newPipeline(t, memory.NewStore())
	if _, err := p.IngestFile(context.Background(), "cv-index", "/no/such/file.txt", "cv"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestIngestEmptyText(t *testing.T) {
	store := memory.NewStore()
	p := newPipeline(t, store)
	chunks, err := p.IngestText(context.Background(), "cv-index", "   ", "cv")
	if err != nil {
		t.Fatal(err)
	}
	if chunks != nil {
		t.Fatalf("chunks = %v, want nil", chunks)
	}
	if names, _ := store.ListIndexes(context.Background()); len(names) != 0 {
		t.Fatalf("no index should be created, got %v", names)
	}
}

type lateIndex struct {
	domain.Index
	statsCalls int
	readyAfter int
	count      int
}

func (l *lateIndex) Upsert(ctx context.Context, namespace string, records []domain.Chunk) error {
	l.count += len(records)
	return nil
}

func (l *lateIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	l.statsCalls++
	if l.statsCalls < l.readyAfter {
		return domain.IndexStats{Namespaces: map[string]int{}}, nil
	}
	return domain.IndexStats{
		TotalRecords: l.count,
		Namespaces:   map[string]int{"cv-namespace": l.count},
	}, nil
}

type lateStore struct {
	index *lateIndex
}

func (s *lateStore) EnsureIndex(ctx context.Context, name string) (domain.Index, error) {
	return s.index, nil
}

func (s *lateStore) OpenIndex(ctx context.Context, name string) (domain.Index, error) {
	return s.index, nil
}

func (s *lateStore) ListIndexes(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestIngestWaitsUntilSearchable(t *testing.T) {
	index := &lateIndex{readyAfter: 3}
	p := newPipeline(t, &lateStore{index: index})

	if _, err := p.IngestText(context.Background(), "cv-index", "Una frase.", "cv"); err != nil {
		t.Fatal(err)
	}
	if index.statsCalls != 3 {
		t.Fatalf("stats polls = %d, want 3", index.statsCalls)
	}
}

func TestIngestGivesUpAfterMaxPolls(t *testing.T) {
	index := &lateIndex{readyAfter: 100}
	p := newPipeline(t, &lateStore{index: index})
	p.MaxPolls = 4

	_, err := p.IngestText(context.Background(), "cv-index", "Una frase.", "cv")
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Fatalf("err = %v, want ErrRemoteUnavailable", err)
	}
	if index.statsCalls != 4 {
		t.Fatalf("stats polls = %d, want 4", index.statsCalls)
	}
}
