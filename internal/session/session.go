package session

import (
	"context"
	"log"

	"github.com/google/uuid"

	"cvchat/internal/domain"
	"cvchat/internal/responder"
	"cvchat/internal/retriever"
)

// Session is a single-owner chat conversation over one index. Its history
// is append-only: each turn adds exactly one user message (carrying the
// retrieved context) and one assistant message. Steady-state remote
// failures are logged and degrade to an empty context or the apology
// reply; they never abort the conversation.
type Session struct {
	id        string
	messages  []domain.Message
	retriever *retriever.Retriever
	responder *responder.Responder
	indexName string
	topK      int
	logger    *log.Logger
}

func New(retr *retriever.Retriever, resp *responder.Responder, indexName string, topK int, logger *log.Logger) *Session {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		id:        uuid.NewString(),
		retriever: retr,
		responder: resp,
		indexName: indexName,
		topK:      topK,
		logger:    logger,
	}
	logger.Printf("session %s started (index=%s)", s.id, indexName)
	return s
}

// Chat runs one turn. When onDelta is non-nil the reply is streamed through
// it fragment by fragment; the complete reply is returned either way and
// appended to the history exactly once.
func (s *Session) Chat(ctx context.Context, userMessage string, onDelta func(string)) string {
	hits, err := s.retriever.Retrieve(ctx, s.indexName, userMessage, s.topK)
	if err != nil {
		s.logger.Printf("session %s: retrieval failed, continuing without context: %v", s.id, err)
		hits = nil
	}

	s.append(domain.RoleUser, responder.ContextMessage(userMessage, hits))

	reply, err := s.responder.Respond(ctx, s.messages, onDelta)
	if err != nil {
		s.logger.Printf("session %s: generation failed: %v", s.id, err)
		reply = responder.Apology
	}
	s.append(domain.RoleAssistant, reply)
	return reply
}

func (s *Session) append(role domain.Role, content string) {
	s.messages = append(s.messages, domain.Message{Role: role, Content: content})
}

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
