package selector

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cvchat/internal/domain"
	"cvchat/internal/retriever"
)

const (
	snippetsPerIndex = 3
	defaultDelay     = 500 * time.Millisecond
	defaultMaxTokens = 50
	noMatches        = "(sin coincidencias relevantes)"
)

// Selector picks the index most relevant to a query: it samples the top
// hits of every available index, then asks the model to name exactly one.
// The answer is validated against the known set; anything else fails closed
// with ErrNoSelection.
type Selector struct {
	store     domain.VectorStore
	llm       domain.ChatClient
	namespace string
	logger    *log.Logger

	// Delay is the pause before each per-index search, to stay clear of
	// remote rate limits. Tests set it to zero.
	Delay     time.Duration
	MaxTokens int
}

func New(store domain.VectorStore, llm domain.ChatClient, namespace string, logger *log.Logger) *Selector {
	if logger == nil {
		logger = log.Default()
	}
	return &Selector{
		store:     store,
		llm:       llm,
		namespace: namespace,
		logger:    logger,
		Delay:     defaultDelay,
		MaxTokens: defaultMaxTokens,
	}
}

type indexSample struct {
	name     string
	snippets []string
}

// Select returns the chosen index name. With zero available indexes it
// returns ErrNoSelection immediately, without a model call.
func (s *Selector) Select(ctx context.Context, query string) (string, error) {
	names, err := s.store.ListIndexes(ctx)
	if err != nil {
		return "", fmt.Errorf("list indexes: %w", err)
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no indexes available", domain.ErrNoSelection)
	}

	known := make(map[string]struct{}, len(names))
	samples := make([]indexSample, 0, len(names))
	for _, name := range names {
		known[name] = struct{}{}
		if err := sleep(ctx, s.Delay); err != nil {
			return "", err
		}
		samples = append(samples, indexSample{name: name, snippets: s.sample(ctx, name, query)})
	}

	answer, err := s.llm.Complete(ctx, domain.CompletionRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: buildPrompt(samples)},
			{Role: domain.RoleUser, Content: query},
		},
		Temperature: 0,
		MaxTokens:   s.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("index selection: %w", err)
	}

	selected := strings.TrimSpace(answer)
	if _, ok := known[selected]; !ok {
		s.logger.Printf("model answered %q, not a known index", selected)
		return "", fmt.Errorf("%w: unrecognized answer", domain.ErrNoSelection)
	}
	return selected, nil
}

// sample fetches the top snippet texts for one index. Failures degrade to
// the placeholder so one broken index cannot abort the selection.
func (s *Selector) sample(ctx context.Context, name, query string) []string {
	s.logger.Printf("buscando en índice %s", name)
	idx, err := s.store.OpenIndex(ctx, name)
	if err != nil {
		s.logger.Printf("open index %s: %v", name, err)
		return []string{noMatches}
	}
	raw, err := idx.SearchRecords(ctx, s.namespace, query, snippetsPerIndex)
	if err != nil {
		s.logger.Printf("search index %s: %v", name, err)
		return []string{noMatches}
	}
	var texts []string
	for _, h := range retriever.Normalize(raw, s.logger) {
		if h.Text != "" {
			texts = append(texts, h.Text)
		}
	}
	if len(texts) == 0 {
		return []string{noMatches}
	}
	return texts
}

func buildPrompt(samples []indexSample) string {
	var b strings.Builder
	b.WriteString("Tienes estos índices con sus contenidos más relevantes:\n")
	for _, s := range samples {
		snippets := s.snippets
		if len(snippets) > snippetsPerIndex {
			snippets = snippets[:snippetsPerIndex]
		}
		fmt.Fprintf(&b, "- Índice: %s\n  Contenido: %s\n", s.name, strings.Join(snippets, " | "))
	}
	b.WriteString("\nInstrucción: Dada la consulta del usuario, responde SOLO con el NOMBRE EXACTO " +
		"del índice más relevante. No incluyas texto adicional.")
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
