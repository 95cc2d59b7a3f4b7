// Package agent talks to the generative text provider used for answer
// synthesis over retrieved context.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

var ErrUnavailable = errors.New("generative model unavailable")

type GenerateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

type Client struct {
	url     string
	model   string
	timeout time.Duration
	client  *http.Client
}

func NewClient(url, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		url:     url,
		model:   model,
		timeout: timeout,
		client:  http.DefaultClient,
	}
}

const systemPrompt = `You are an assistant answering questions about the user's own documents.
Answer clearly and to the point, using only the provided context.
If the context is empty or does not contain the answer, say 'No information for this request.'
Do not add introductions.`

// GenerateAnswer asks the model to answer question from the given
// context block. Empty context is passed through as-is; the system
// prompt handles it.
func (c *Client) GenerateAnswer(ctx context.Context, contextBlock, question string) (string, error) {
	start := time.Now()
	defer func() {
		log.Printf("[AGENT] answer took %v", time.Since(start))
	}()

	if contextBlock == "" {
		contextBlock = "empty"
	}

	prompt := fmt.Sprintf(`Answer the question based on the given context.
Context:
%s
Question:
%s
Answer:`, contextBlock, question)

	reqBody, err := json.Marshal(GenerateRequest{
		Model:  c.model,
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("%w: marshal request: %v", ErrUnavailable, err)
	}

	if count, err := CountTokens(reqBody); err == nil {
		log.Printf("[AGENT] prompt size: %d tokens", count)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(msg))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Streaming response: concatenate the chunks.
	var output string
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output += chunk.Response
	}
	return output, nil
}

// CountTokens reports the token length of data under the gpt-3.5-turbo
// encoding, close enough for prompt budgeting across models.
func CountTokens(data []byte) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	tokens := enc.Encode(string(data), nil, nil)
	return len(tokens), nil
}
