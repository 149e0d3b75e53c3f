package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxInputBytes is the largest text the provider will accept. Oversized
// inputs are rejected up front instead of being silently truncated by the
// model server.
const maxInputBytes = 1 << 20 // 1MB

const batchConcurrency = 4

// Compile-time check that OllamaProvider implements Provider.
var _ Provider = (*OllamaProvider)(nil)

// OllamaProvider generates embeddings via a local Ollama instance.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
}

// NewOllamaProvider creates a provider targeting the Ollama server at
// baseURL, using the given embedding model with the given dimensionality.
func NewOllamaProvider(baseURL, model string, dimensions int) *OllamaProvider {
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OllamaProvider) Dimensions() int { return p.dimensions }

func (p *OllamaProvider) ModelID() string { return p.model }

// embedRequest is the JSON body for POST /api/embed.
type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// embedResponse is the JSON returned by POST /api/embed.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for the given text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Op: "embed", Err: errors.New("empty input")}
	}
	if len(text) > maxInputBytes {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("input exceeds %d bytes", maxInputBytes)}
	}

	body, err := json.Marshal(embedRequest{Model: p.model, Input: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "embed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(result.Embeddings) == 0 {
		return nil, &Error{Op: "embed", Err: errors.New("no embedding in response")}
	}

	vec := result.Embeddings[0]
	if len(vec) != p.dimensions {
		return nil, &Error{Op: "embed", Err: fmt.Errorf("model returned %d dimensions, expected %d", len(vec), p.dimensions)}
	}
	return vec, nil
}

// EmbedBatch embeds multiple texts concurrently, preserving input order.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := p.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IsRunning returns true if the Ollama server responds to GET /api/tags.
func (p *OllamaProvider) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
