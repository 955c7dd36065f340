package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"cvchat/internal/domain"
	"cvchat/internal/responder"
	"cvchat/internal/retriever"
	"cvchat/internal/selector"
)

const (
	// NoCVReply is returned when no index matches the query. The turn is
	// discarded: nothing is appended to the conversation history.
	NoCVReply = "No encontré un CV relevante para tu consulta."

	systemPrompt = "Eres un asistente que responde preguntas basándote EXCLUSIVAMENTE en el contexto provisto. " +
		"Si el contexto no contiene la respuesta, dilo claramente. Responde en el idioma de la consulta."

	maxSnippets    = 5
	maxSnippetLen  = 300
	noContextLabel = "(sin contexto relevante)"
)

// Agent answers each query in three steps: pick the most relevant index,
// retrieve context from it, generate a reply. Unlike a fixed-index session
// the target index can change from turn to turn.
type Agent struct {
	id        string
	messages  []domain.Message
	selector  *selector.Selector
	retriever *retriever.Retriever
	responder *responder.Responder
	topK      int
	logger    *log.Logger
}

func New(sel *selector.Selector, retr *retriever.Retriever, resp *responder.Responder, topK int, logger *log.Logger) *Agent {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	a := &Agent{
		id:        uuid.NewString(),
		selector:  sel,
		retriever: retr,
		responder: resp,
		topK:      topK,
		logger:    logger,
	}
	logger.Printf("agent %s started", a.id)
	return a
}

// Answer runs one query through the full pipeline. When no index can be
// selected it returns NoCVReply without touching the history, so a failed
// turn leaves the conversation exactly as it was.
func (a *Agent) Answer(ctx context.Context, query string, onDelta func(string)) string {
	indexName, err := a.selector.Select(ctx, query)
	if err != nil {
		a.logger.Printf("agent %s: index selection failed: %v", a.id, err)
		return NoCVReply
	}
	a.logger.Printf("agent %s: selected index %s", a.id, indexName)

	hits, err := a.retriever.Retrieve(ctx, indexName, query, a.topK)
	if err != nil {
		a.logger.Printf("agent %s: retrieval failed, continuing without context: %v", a.id, err)
		hits = nil
	}

	if len(a.messages) == 0 {
		a.append(domain.RoleSystem, systemPrompt)
	}
	a.append(domain.RoleUser, userMessage(query, indexName, hits))

	reply, err := a.responder.Respond(ctx, a.messages, onDelta)
	if err != nil {
		a.logger.Printf("agent %s: generation failed: %v", a.id, err)
		reply = responder.Apology
	}
	a.append(domain.RoleAssistant, reply)
	return reply
}

func (a *Agent) append(role domain.Role, content string) {
	a.messages = append(a.messages, domain.Message{Role: role, Content: content})
}

// Messages returns a copy of the conversation history.
func (a *Agent) Messages() []domain.Message {
	out := make([]domain.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

func userMessage(query, indexName string, hits []domain.SearchHit) string {
	return fmt.Sprintf("Consulta del usuario: %s\n\nÍndice seleccionado: %s\nContexto (fragmentos):\n- %s\n\nResponde de forma concisa y útil.",
		query, indexName, joinSnippets(hits))
}

func joinSnippets(hits []domain.SearchHit) string {
	if len(hits) == 0 {
		return noContextLabel
	}
	if len(hits) > maxSnippets {
		hits = hits[:maxSnippets]
	}
	snippets := make([]string, 0, len(hits))
	for _, h := range hits {
		snippets = append(snippets, truncate(h.Text, maxSnippetLen))
	}
	return strings.Join(snippets, "\n- ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
