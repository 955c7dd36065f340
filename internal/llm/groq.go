package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"cvchat/internal/domain"
)

// Client talks to a Groq (OpenAI-compatible) chat-completion endpoint.
type Client struct {
	api   *openai.Client
	model string
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing model service API key", domain.ErrAuthentication)
	}
	if cfg.Model == "" {
		return nil, errors.New("missing model name")
	}
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return &Client{api: openai.NewClientWithConfig(c), model: cfg.Model}, nil
}

// Complete runs a buffered chat completion.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(req, false))
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", domain.ErrRemoteUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream runs a streaming chat completion, invoking onDelta per fragment in
// arrival order. The returned string is the concatenation of all fragments;
// the stream is drained to its end sentinel before returning.
func (c *Client) Stream(ctx context.Context, req domain.CompletionRequest, onDelta func(string)) (string, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.request(req, true))
	if err != nil {
		return "", classify(err)
	}
	defer stream.Close()

	var b strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return b.String(), nil
		}
		if err != nil {
			return "", classify(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
}

func (c *Client) request(req domain.CompletionRequest, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature(req.Temperature),
		MaxTokens:   req.MaxTokens,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}
}

// temperature works around the client omitting a zero temperature from the
// request body, which would restore the server default of 1.
func temperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// classify maps transport failures onto the error taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", domain.ErrAuthentication, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
}
