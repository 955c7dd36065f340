package responder

import (
	"context"
	"strings"

	"cvchat/internal/domain"
)

// Apology is the fixed reply shown when generation fails. The conversation
// owner appends it instead of the model answer and logs the diagnostic.
const Apology = "Ocurrió un error generando la respuesta."

// Options are the generation parameters applied to every request.
type Options struct {
	Temperature float32
	MaxTokens   int
	TopP        float32
	Stop        []string
}

// Responder turns an accumulated conversation history into one model call,
// buffered or streaming.
type Responder struct {
	llm  domain.ChatClient
	opts Options
}

func New(llm domain.ChatClient, opts Options) *Responder {
	if opts.Temperature == 0 {
		opts.Temperature = 1
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1024
	}
	if opts.TopP == 0 {
		opts.TopP = 1
	}
	return &Responder{llm: llm, opts: opts}
}

// Respond generates the next assistant reply from the full history. When
// onDelta is non-nil the response is streamed and onDelta receives each
// fragment in arrival order; either way the complete text is returned.
// Errors are propagated; the caller decides how to surface them.
func (r *Responder) Respond(ctx context.Context, history []domain.Message, onDelta func(string)) (string, error) {
	req := domain.CompletionRequest{
		Messages:    history,
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.MaxTokens,
		TopP:        r.opts.TopP,
		Stop:        r.opts.Stop,
	}
	if onDelta == nil {
		return r.llm.Complete(ctx, req)
	}
	return r.llm.Stream(ctx, req, onDelta)
}

// ContextMessage composes the user turn carrying retrieved context: the
// query followed by the hit texts joined by single spaces. With no hits
// the query is returned as-is.
func ContextMessage(query string, hits []domain.SearchHit) string {
	if len(hits) == 0 {
		return query
	}
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return query + "\n\nContexto: " + strings.Join(texts, " ")
}
