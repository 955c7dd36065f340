package domain

import "context"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn in a conversation history. Histories are append-only
// and owned by a single session or agent.
type Message struct {
	Role    Role
	Content string
}

// Chunk is a bounded span of source text stored as one retrievable record.
type Chunk struct {
	ID       string
	Text     string
	Category string
}

// RawHit is a search hit as returned by the index service, before
// normalization. Fields carries the record metadata as decoded JSON.
type RawHit struct {
	ID     string
	Score  float64
	Fields map[string]any
}

// SearchHit is a normalized retrieval result.
type SearchHit struct {
	ID       string
	Score    float64
	Category string
	Text     string
}

// IndexStats reports record counts for an index.
type IndexStats struct {
	TotalRecords int
	Namespaces   map[string]int
}

// Index is a handle to one vector index.
type Index interface {
	// Upsert sends records for indexing. Delivery is at-least-once per
	// record; no ordering across records is guaranteed.
	Upsert(ctx context.Context, namespace string, records []Chunk) error

	// SearchRecords returns up to topK hits ordered by descending score.
	// The order among equal scores is whatever the remote returns and must
	// not be relied upon.
	SearchRecords(ctx context.Context, namespace, query string, topK int) ([]RawHit, error)

	Stats(ctx context.Context) (IndexStats, error)
}

// VectorStore manages index lifecycle.
type VectorStore interface {
	// EnsureIndex returns a handle to the named index, creating it remotely
	// and waiting until it is ready if it does not exist yet.
	EnsureIndex(ctx context.Context, name string) (Index, error)

	// OpenIndex returns a handle to an existing index without creating it.
	OpenIndex(ctx context.Context, name string) (Index, error)

	ListIndexes(ctx context.Context) ([]string, error)
}

// CompletionRequest describes one chat-completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
	TopP        float32
	Stop        []string
}

// ChatClient talks to the language model service.
type ChatClient interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// Stream invokes onDelta for each content fragment in arrival order and
	// returns the concatenation of all fragments. The stream is fully
	// drained (or closed on error) before Stream returns.
	Stream(ctx context.Context, req CompletionRequest, onDelta func(string)) (string, error)
}
