package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// tokenLimit bounds embedding input; longer texts are truncated.
const tokenLimit = 8192

// OllamaEmbedder creates embeddings through the Ollama batch endpoint.
// The backing model is loaded lazily on first use; initialization is
// serialized so concurrent first calls warm it up exactly once.
type OllamaEmbedder struct {
	apiURL  string
	model   string
	timeout time.Duration
	client  *http.Client

	mu        sync.Mutex
	ready     bool
	dimension int
	encoder   *tiktoken.Tiktoken
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func NewOllamaEmbedder(apiURL, model string, timeout time.Duration) *OllamaEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OllamaEmbedder{
		apiURL:  apiURL,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

// ensureReady warms the model with a probe call and records its output
// dimension. Held under the mutex: a failed warm-up is retried by the
// next caller instead of being latched forever.
func (e *OllamaEmbedder) ensureReady(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return nil
	}

	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return fmt.Errorf("%w: load tokenizer: %v", ErrUnavailable, err)
	}

	log.Printf("[EMBEDDER] loading model %s", e.model)
	vecs, err := e.call(ctx, []string{"ping"})
	if err != nil {
		return err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return fmt.Errorf("%w: empty probe embedding", ErrUnavailable)
	}

	e.encoder = enc
	e.dimension = len(vecs[0])
	e.ready = true
	log.Printf("[EMBEDDER] model %s ready, dimension %d", e.model, e.dimension)
	return nil
}

func (e *OllamaEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.ensureReady(ctx); err != nil {
		return nil, err
	}

	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = e.truncate(t)
	}

	vecs, err := e.call(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrUnavailable, len(vecs), len(texts))
	}
	return vecs, nil
}

func (e *OllamaEmbedder) Dimension(ctx context.Context) (int, error) {
	if err := e.ensureReady(ctx); err != nil {
		return 0, err
	}
	return e.dimension, nil
}

func (e *OllamaEmbedder) call(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return embedResp.Embeddings, nil
}

// truncate cuts text down to the model's token budget.
func (e *OllamaEmbedder) truncate(text string) string {
	if e.encoder == nil {
		return text
	}
	tokens := e.encoder.Encode(text, nil, nil)
	if len(tokens) <= tokenLimit {
		return text
	}
	log.Printf("[EMBEDDER] truncating input from %d to %d tokens", len(tokens), tokenLimit)
	return e.encoder.Decode(tokens[:tokenLimit])
}
