package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cvchat/internal/domain"
)

// Client is a minimal REST client to a managed vector index service with
// integrated embedding: records are upserted as text and embedded
// server-side, and searches take free text.
//
// The control plane (ControlURL) handles index lifecycle; each index has its
// own data-plane host returned by describe.
type Client struct {
	controlURL     string
	apiKey         string
	embeddingModel string
	cloud          string
	region         string
	client         *http.Client
	logger         *log.Logger

	maxRetries      int
	pollInterval    time.Duration
	maxPollAttempts int
}

type Config struct {
	ControlURL     string
	APIKey         string
	EmbeddingModel string
	Cloud          string
	Region         string
	Timeout        time.Duration
}

func NewClient(cfg Config, logger *log.Logger) *Client {
	if cfg.ControlURL == "" {
		cfg.ControlURL = "https://api.pinecone.io"
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "llama-text-embed-v2"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		controlURL:      strings.TrimRight(cfg.ControlURL, "/"),
		apiKey:          cfg.APIKey,
		embeddingModel:  cfg.EmbeddingModel,
		cloud:           cfg.Cloud,
		region:          cfg.Region,
		client:          &http.Client{Timeout: timeout},
		logger:          logger,
		maxRetries:      5,
		pollInterval:    2 * time.Second,
		maxPollAttempts: 30,
	}
}

type indexDescription struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	var out struct {
		Indexes []indexDescription `json:"indexes"`
	}
	if err := c.getJSON(ctx, c.controlURL+"/indexes", &out); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(out.Indexes))
	for _, idx := range out.Indexes {
		names = append(names, idx.Name)
	}
	return names, nil
}

// EnsureIndex returns a handle to the named index. When absent it creates
// an integrated-embedding index and polls until ready, bounded by
// maxPollAttempts.
func (c *Client) EnsureIndex(ctx context.Context, name string) (domain.Index, error) {
	desc, err := c.describeIndex(ctx, name)
	switch {
	case err == nil && desc.Status.Ready:
		return c.index(name, desc.Host), nil
	case err == nil:
		// exists but still initializing
	case isNotFound(err):
		c.logger.Printf("index %s not found, creating", name)
		body := map[string]any{
			"name":   name,
			"cloud":  c.cloud,
			"region": c.region,
			"embed": map[string]any{
				"model":     c.embeddingModel,
				"field_map": map[string]string{"text": "chunk_text"},
			},
		}
		if err := c.postJSON(ctx, c.controlURL+"/indexes/create-for-model", body, nil); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return c.waitReady(ctx, name)
}

// OpenIndex returns a handle to an existing index without creating it.
func (c *Client) OpenIndex(ctx context.Context, name string) (domain.Index, error) {
	desc, err := c.describeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	return c.index(name, desc.Host), nil
}

func (c *Client) waitReady(ctx context.Context, name string) (domain.Index, error) {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		desc, err := c.describeIndex(ctx, name)
		if err == nil && desc.Status.Ready {
			return c.index(name, desc.Host), nil
		}
		if err != nil && !isNotFound(err) {
			return nil, err
		}
		if err := sleep(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: index %s not ready after %d polls",
		domain.ErrRemoteUnavailable, name, c.maxPollAttempts)
}

func (c *Client) describeIndex(ctx context.Context, name string) (*indexDescription, error) {
	var desc indexDescription
	if err := c.getJSON(ctx, c.controlURL+"/indexes/"+name, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *Client) index(name, host string) *Index {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &Index{c: c, name: name, host: strings.TrimRight(host, "/")}
}

// Index is a data-plane handle to one remote index.
type Index struct {
	c    *Client
	name string
	host string
}

// Upsert sends records one request per record, the service's documented
// ingestion path for integrated embedding. Each record is retried on
// transient failure, so delivery is at-least-once; ordering across records
// is not guaranteed.
func (i *Index) Upsert(ctx context.Context, namespace string, records []domain.Chunk) error {
	url := fmt.Sprintf("%s/records/namespaces/%s/upsert", i.host, namespace)
	for _, rec := range records {
		line, err := json.Marshal(map[string]string{
			"_id":        rec.ID,
			"chunk_text": rec.Text,
			"category":   rec.Category,
		})
		if err != nil {
			return err
		}
		resp, err := i.c.send(ctx, http.MethodPost, url, "application/x-ndjson", line)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.ID, err)
		}
		resp.Body.Close()
	}
	return nil
}

// SearchRecords runs a free-text search. Hits come back ordered by
// descending score; the order among equal scores is whatever the service
// returns and must not be relied upon.
func (i *Index) SearchRecords(ctx context.Context, namespace, query string, topK int) ([]domain.RawHit, error) {
	if topK <= 0 {
		topK = 3
	}
	body := map[string]any{
		"query": map[string]any{
			"top_k":  topK,
			"inputs": map[string]string{"text": query},
		},
	}
	var out struct {
		Result struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Score  float64        `json:"_score"`
				Fields map[string]any `json:"fields"`
			} `json:"hits"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/records/namespaces/%s/search", i.host, namespace)
	if err := i.c.postJSON(ctx, url, body, &out); err != nil {
		return nil, err
	}
	hits := make([]domain.RawHit, 0, len(out.Result.Hits))
	for _, h := range out.Result.Hits {
		hits = append(hits, domain.RawHit{ID: h.ID, Score: h.Score, Fields: h.Fields})
	}
	return hits, nil
}

func (i *Index) Stats(ctx context.Context) (domain.IndexStats, error) {
	var out struct {
		Namespaces map[string]struct {
			RecordCount int `json:"recordCount"`
		} `json:"namespaces"`
		TotalRecordCount int `json:"totalRecordCount"`
	}
	if err := i.c.postJSON(ctx, i.host+"/describe_index_stats", map[string]any{}, &out); err != nil {
		return domain.IndexStats{}, err
	}
	stats := domain.IndexStats{
		TotalRecords: out.TotalRecordCount,
		Namespaces:   make(map[string]int, len(out.Namespaces)),
	}
	for ns, v := range out.Namespaces {
		stats.Namespaces[ns] = v.RecordCount
	}
	return stats, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	resp, err := c.send(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, url, "application/json", data)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// send issues the request with bounded retry on transient failures
// (network errors, 429 and 5xx). The caller owns the response body of a
// successful call.
func (c *Client) send(ctx context.Context, method, url, contentType string, body []byte) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if c.apiKey != "" {
			req.Header.Set("Api-Key", c.apiKey)
		}
		req.Header.Set("X-Pinecone-Api-Version", "2025-01")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s %s: %v", domain.ErrRemoteUnavailable, method, url, err)
			if err := sleep(ctx, retryDelay(attempt)); err != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < 300 {
			return resp, nil
		}
		serr := &statusError{code: resp.StatusCode, method: method, url: url}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = serr
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}
		return nil, serr
	}
	return nil, lastErr
}

// statusError maps HTTP failures onto the error taxonomy via Unwrap.
type statusError struct {
	code   int
	method string
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s %s failed: status %d", e.method, e.url, e.code)
}

func (e *statusError) Unwrap() error {
	if e.code == http.StatusUnauthorized || e.code == http.StatusForbidden {
		return domain.ErrAuthentication
	}
	return domain.ErrRemoteUnavailable
}

func isNotFound(err error) bool {
	var serr *statusError
	return errors.As(err, &serr) && serr.code == http.StatusNotFound
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
