package selector

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"cvchat/internal/domain"
)

type fakeIndex struct {
	raw []domain.RawHit
	err error
}

func (f *fakeIndex) Upsert(ctx context.Context, ns string, records []domain.Chunk) error {
	return nil
}

func (f *fakeIndex) SearchRecords(ctx context.Context, ns, query string, topK int) ([]domain.RawHit, error) {
	return f.raw, f.err
}

func (f *fakeIndex) Stats(ctx context.Context) (domain.IndexStats, error) {
	return domain.IndexStats{}, nil
}

type fakeStore struct {
	names   []string
	indexes map[string]domain.Index
}

func (f *fakeStore) EnsureIndex(ctx context.Context, name string) (domain.Index, error) {
	return f.indexes[name], nil
}

func (f *fakeStore) OpenIndex(ctx context.Context, name string) (domain.Index, error) {
	idx, ok := f.indexes[name]
	if !ok {
		return nil, domain.ErrRemoteUnavailable
	}
	return idx, nil
}

func (f *fakeStore) ListIndexes(ctx context.Context) ([]string, error) {
	return f.names, nil
}

type fakeChat struct {
	answer  string
	err     error
	calls   int
	lastReq domain.CompletionRequest
}

func (f *fakeChat) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.answer, f.err
}

func (f *fakeChat) Stream(ctx context.Context, req domain.CompletionRequest, onDelta func(string)) (string, error) {
	return f.Complete(ctx, req)
}

func newSelector(store domain.VectorStore, chat domain.ChatClient) *Selector {
	s := New(store, chat, "cv-namespace", log.New(io.Discard, "", 0))
	s.Delay = 0
	return s
}

func TestZeroIndexesNoModelCall(t *testing.T) {
	chat := &fakeChat{answer: "whatever"}
	s := newSelector(&fakeStore{}, chat)
	_, err := s.Select(context.Background(), "consulta")
	if !errors.Is(err, domain.ErrNoSelection) {
		t.Errorf("expected ErrNoSelection, got %v", err)
	}
	if chat.calls != 0 {
		t.Errorf("model was called %d times for zero indexes", chat.calls)
	}
}

func TestUnknownAnswerFailsClosed(t *testing.T) {
	store := &fakeStore{
		names: []string{"cv-ana"},
		indexes: map[string]domain.Index{
			"cv-ana": &fakeIndex{raw: []domain.RawHit{
				{ID: "h1", Score: 0.9, Fields: map[string]any{"chunk_text": "ingeniera de datos."}},
			}},
		},
	}
	chat := &fakeChat{answer: "cv-made-up"}
	s := newSelector(store, chat)
	_, err := s.Select(context.Background(), "consulta")
	if !errors.Is(err, domain.ErrNoSelection) {
		t.Errorf("expected ErrNoSelection for unknown answer, got %v", err)
	}
}

func TestValidAnswerSelected(t *testing.T) {
	store := &fakeStore{
		names: []string{"cv-ana", "cv-juan"},
		indexes: map[string]domain.Index{
			"cv-ana":  &fakeIndex{raw: []domain.RawHit{{ID: "a", Fields: map[string]any{"chunk_text": "datos."}}}},
			"cv-juan": &fakeIndex{raw: []domain.RawHit{{ID: "j", Fields: map[string]any{"chunk_text": "ventas."}}}},
		},
	}
	chat := &fakeChat{answer: " cv-juan \n"}
	s := newSelector(store, chat)
	name, err := s.Select(context.Background(), "experiencia en ventas")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if name != "cv-juan" {
		t.Errorf("selected %q", name)
	}
	if chat.lastReq.Temperature != 0 {
		t.Errorf("selection must use temperature 0, got %f", chat.lastReq.Temperature)
	}
	if chat.lastReq.MaxTokens != defaultMaxTokens {
		t.Errorf("unexpected token cap: %d", chat.lastReq.MaxTokens)
	}
	prompt := chat.lastReq.Messages[0].Content
	for _, want := range []string{"cv-ana", "cv-juan", "datos.", "ventas."} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBrokenIndexDegradesToPlaceholder(t *testing.T) {
	store := &fakeStore{
		names: []string{"cv-roto", "cv-ana"},
		indexes: map[string]domain.Index{
			// cv-roto is listed but cannot be opened
			"cv-ana": &fakeIndex{raw: []domain.RawHit{{ID: "a", Fields: map[string]any{"chunk_text": "datos."}}}},
		},
	}
	chat := &fakeChat{answer: "cv-ana"}
	s := newSelector(store, chat)
	name, err := s.Select(context.Background(), "consulta")
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if name != "cv-ana" {
		t.Errorf("selected %q", name)
	}
	if !strings.Contains(chat.lastReq.Messages[0].Content, noMatches) {
		t.Error("broken index should contribute the placeholder snippet")
	}
}

func TestModelFailurePropagates(t *testing.T) {
	store := &fakeStore{
		names:   []string{"cv-ana"},
		indexes: map[string]domain.Index{"cv-ana": &fakeIndex{}},
	}
	chat := &fakeChat{err: domain.ErrRemoteUnavailable}
	s := newSelector(store, chat)
	_, err := s.Select(context.Background(), "consulta")
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		t.Errorf("expected remote error, got %v", err)
	}
}
